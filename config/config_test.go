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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvAgentURL, EnvAgentEnabled, EnvTimeout, EnvMaxRetries,
		EnvMaxHistory, EnvWebhookBase, EnvListenAddr, EnvStorage, EnvStorageDSN,
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultStorage, cfg.Storage.Dialect)
	assert.Equal(t, DefaultStorageDSN, cfg.Storage.DSN)
	assert.Equal(t, DefaultTimeout, cfg.Agent.Timeout)
	assert.Equal(t, DefaultMaxRetries, cfg.Agent.MaxRetries)
	assert.Equal(t, DefaultMaxHistory, cfg.Agent.MaxHistory)
	assert.False(t, cfg.Agent.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAgentURL, "http://agent.local:9999")
	t.Setenv(EnvAgentEnabled, "true")
	t.Setenv(EnvTimeout, "30s")
	t.Setenv(EnvMaxRetries, "5")
	t.Setenv(EnvMaxHistory, "4")
	t.Setenv(EnvStorage, "postgres")
	t.Setenv(EnvStorageDSN, "postgres://canvas@localhost/canvas")
	t.Setenv(EnvListenAddr, ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://agent.local:9999", cfg.Agent.URL)
	assert.True(t, cfg.Agent.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 5, cfg.Agent.MaxRetries)
	assert.Equal(t, 4, cfg.Agent.MaxHistory)
	assert.Equal(t, "postgres", cfg.Storage.Dialect)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoad_EnabledRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAgentEnabled, "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeout, "soonish")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_UnsupportedStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStorage, "cassandra")

	_, err := Load()
	require.Error(t, err)
}

func TestStorageConfig_DriverName(t *testing.T) {
	assert.Equal(t, "sqlite3", (&StorageConfig{Dialect: "sqlite"}).DriverName())
	assert.Equal(t, "sqlite3", (&StorageConfig{Dialect: "sqlite3"}).DriverName())
	assert.Equal(t, "postgres", (&StorageConfig{Dialect: "postgres"}).DriverName())
	assert.Equal(t, "mysql", (&StorageConfig{Dialect: "mysql"}).DriverName())
}
