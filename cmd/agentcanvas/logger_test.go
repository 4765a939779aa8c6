// Copyright 2025 The AgentCanvas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerFromCLI_EnvFallback(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")

	cleanup, err := initLoggerFromCLI("", "", "")
	require.NoError(t, err)
	require.Nil(t, cleanup)

	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug),
		"LOG_LEVEL must apply when the flag is unset")
}

func TestInitLoggerFromCLI_FlagBeatsEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")

	_, err := initLoggerFromCLI("error", "", "")
	require.NoError(t, err)

	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

func TestInitLoggerFromCLI_InvalidLevel(t *testing.T) {
	_, err := initLoggerFromCLI("shouty", "", "")
	require.Error(t, err)
}
