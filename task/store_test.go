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

package task

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	return store
}

func TestNewSQLStore_RejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "oracle")
	require.Error(t, err)
}

func TestStore_CreateAndGetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := &Task{
		ID:           "t-1",
		ContextID:    "ctx-1",
		Title:        "research competitors",
		WebhookToken: "tok-1",
	}
	require.NoError(t, store.CreateTask(ctx, created))

	got, err := store.GetTask(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "research competitors", got.Title)
	assert.Equal(t, StatusSubmitted, got.Status, "empty status defaults to submitted")
	assert.Equal(t, "tok-1", got.WebhookToken)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_GetTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStore_FindTaskByTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &Task{
		ID: "t-1", ContextID: "ctx-1", Title: "draft outline", WebhookToken: "tok",
	}))

	got, err := store.FindTaskByTitle(ctx, "ctx-1", "draft outline")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ID)

	// Same title in a different conversation is a different task.
	_, err = store.FindTaskByTitle(ctx, "ctx-2", "draft outline")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStore_UpdateTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &Task{
		ID: "t-1", ContextID: "ctx-1", Title: "build report", WebhookToken: "tok",
	}))

	working := StatusWorking
	msg := "gathering data"
	updated, err := store.UpdateTask(ctx, "t-1", Update{Status: &working, StatusMessage: &msg})
	require.NoError(t, err)
	assert.Equal(t, StatusWorking, updated.Status)
	assert.Equal(t, "gathering data", updated.StatusMessage)

	// Partial update leaves untouched fields alone.
	done := StatusCompleted
	updated, err = store.UpdateTask(ctx, "t-1", Update{
		Status: &done,
		Result: map[string]any{"rows": float64(12)},
	})
	require.NoError(t, err)
	assert.Equal(t, "gathering data", updated.StatusMessage)

	got, err := store.GetTask(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, map[string]any{"rows": float64(12)}, got.Result)
}

func TestStore_UpdateTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	working := StatusWorking
	_, err := store.UpdateTask(context.Background(), "missing", Update{Status: &working})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStore_CreateAndGetDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &Document{
		ID:      "d-1",
		Title:   "Q3 plan",
		Content: map[string]any{"blocks": []any{"intro"}},
	}))

	got, err := store.GetDocument(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "Q3 plan", got.Title)
	assert.Equal(t, map[string]any{"blocks": []any{"intro"}}, got.Content)
	assert.Empty(t, got.TaskIDs)
}

func TestStore_GetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDocument(context.Background(), "missing")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestStore_AppendTaskIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &Document{ID: "d-1", Title: "doc"}))

	require.NoError(t, store.AppendTaskIDs(ctx, "d-1", "t-1", "t-2"))
	// Relinking the same task is a no-op.
	require.NoError(t, store.AppendTaskIDs(ctx, "d-1", "t-2", "t-3"))

	got, err := store.GetDocument(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2", "t-3"}, got.TaskIDs)
}

func TestStore_AppendTaskIDsUnknownDocument(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendTaskIDs(context.Background(), "missing", "t-1")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestStatus_Valid(t *testing.T) {
	valid := []Status{
		StatusSubmitted, StatusWorking, StatusInputRequired, StatusAuthRequired,
		StatusCompleted, StatusFailed, StatusCanceled, StatusRejected, StatusUnknown,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("paused").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusWorking.Terminal())
	assert.False(t, StatusInputRequired.Terminal())
	assert.False(t, StatusAuthRequired.Terminal())
	assert.False(t, StatusUnknown.Terminal())
}

func TestDecodeDescriptor(t *testing.T) {
	d, err := DecodeDescriptor(map[string]any{
		"id":        "t-9",
		"title":     "summarize findings",
		"status":    "submitted",
		"contextId": "ctx-9",
		"priority":  "high",
		"order":     2,
		"metadata":  map[string]any{"source": "planner"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t-9", d.ID)
	assert.Equal(t, "summarize findings", d.Title)
	assert.Equal(t, "ctx-9", d.ContextID)
	assert.Equal(t, 2, d.Order)
}

func TestDecodeDescriptor_MissingTitle(t *testing.T) {
	_, err := DecodeDescriptor(map[string]any{"id": "t-9"})
	require.Error(t, err)
}
