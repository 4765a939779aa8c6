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
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists canvas tasks and documents.
type Store interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)

	// FindTaskByTitle looks a task up by its natural key within a
	// conversation. Used to absorb redelivered task announcements.
	FindTaskByTitle(ctx context.Context, contextID, title string) (*Task, error)

	// UpdateTask applies a partial update. Returns ErrTaskNotFound when the
	// task does not exist.
	UpdateTask(ctx context.Context, id string, upd Update) (*Task, error)

	CreateDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)

	// AppendTaskIDs links tasks to a document, skipping IDs already linked.
	AppendTaskIDs(ctx context.Context, documentID string, taskIDs ...string) error

	Close() error
}

// SQLStore implements Store on database/sql, supporting sqlite, postgres
// and mysql. The db connection should be shared with other services using
// the same database to prevent SQLite "database is locked" errors.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const (
	createTasksTableSQL = `
CREATE TABLE IF NOT EXISTS canvas_tasks (
    id VARCHAR(255) PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    title TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    status_message TEXT,
    result_json TEXT,
    webhook_token VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

	createTasksContextIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_canvas_tasks_context_id ON canvas_tasks(context_id)`

	createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS canvas_documents (
    id VARCHAR(255) PRIMARY KEY,
    title TEXT NOT NULL,
    content_json TEXT,
    task_ids_json TEXT,
    created_at TIMESTAMP NOT NULL
)`
)

// NewSQLStore creates a SQL-backed store and initializes its schema.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	normalized := dialect
	if dialect == "sqlite3" {
		normalized = "sqlite"
	}
	switch normalized {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: normalized}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Separate statements for table and index to keep SQLite happy.
	for _, stmt := range []string{createTasksTableSQL, createTasksContextIndexSQL, createDocumentsTableSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run schema statement: %w", err)
		}
	}
	return nil
}

// CreateTask inserts a task. Timestamps are stamped here; an empty status
// defaults to submitted.
func (s *SQLStore) CreateTask(ctx context.Context, t *Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task with an id is required")
	}
	if t.Status == "" {
		t.Status = StatusSubmitted
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	resultJSON, err := marshalOrEmpty(t.Result, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
INSERT INTO canvas_tasks (id, context_id, title, status, status_message, result_json, webhook_token, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		query = `
INSERT INTO canvas_tasks (id, context_id, title, status, status_message, result_json, webhook_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	}

	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.ContextID, t.Title, string(t.Status), t.StatusMessage,
		resultJSON, t.WebhookToken, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*Task, error) {
	query := taskSelectSQL + ` WHERE id = ?`
	if s.dialect == "postgres" {
		query = taskSelectSQL + ` WHERE id = $1`
	}
	return s.scanTask(s.db.QueryRowContext(ctx, query, id))
}

// FindTaskByTitle retrieves a task by (contextID, title). The most recently
// created match wins when duplicates somehow exist.
func (s *SQLStore) FindTaskByTitle(ctx context.Context, contextID, title string) (*Task, error) {
	query := taskSelectSQL + ` WHERE context_id = ? AND title = ? ORDER BY created_at DESC LIMIT 1`
	if s.dialect == "postgres" {
		query = taskSelectSQL + ` WHERE context_id = $1 AND title = $2 ORDER BY created_at DESC LIMIT 1`
	}
	return s.scanTask(s.db.QueryRowContext(ctx, query, contextID, title))
}

const taskSelectSQL = `
SELECT id, context_id, title, status, status_message, result_json, webhook_token, created_at, updated_at
FROM canvas_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanTask(row rowScanner) (*Task, error) {
	var (
		t             Task
		status        string
		statusMessage sql.NullString
		resultJSON    sql.NullString
	)
	err := row.Scan(&t.ID, &t.ContextID, &t.Title, &status, &statusMessage,
		&resultJSON, &t.WebhookToken, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	t.Status = Status(status)
	t.StatusMessage = statusMessage.String
	if resultJSON.Valid && resultJSON.String != "" && resultJSON.String != "{}" {
		if err := json.Unmarshal([]byte(resultJSON.String), &t.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return &t, nil
}

// UpdateTask applies a partial update and returns the updated task.
func (s *SQLStore) UpdateTask(ctx context.Context, id string, upd Update) (*Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		current.Status = *upd.Status
	}
	if upd.StatusMessage != nil {
		current.StatusMessage = *upd.StatusMessage
	}
	if upd.Result != nil {
		current.Result = upd.Result
	}
	current.UpdatedAt = time.Now().UTC()

	resultJSON, err := marshalOrEmpty(current.Result, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
UPDATE canvas_tasks SET status = ?, status_message = ?, result_json = ?, updated_at = ?
WHERE id = ?`
	if s.dialect == "postgres" {
		query = `
UPDATE canvas_tasks SET status = $1, status_message = $2, result_json = $3, updated_at = $4
WHERE id = $5`
	}

	res, err := s.db.ExecContext(ctx, query,
		string(current.Status), current.StatusMessage, resultJSON, current.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTaskNotFound
	}

	slog.Debug("Task updated", "taskID", id, "status", current.Status)
	return current, nil
}

// CreateDocument inserts a document.
func (s *SQLStore) CreateDocument(ctx context.Context, d *Document) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("document with an id is required")
	}
	d.CreatedAt = time.Now().UTC()

	contentJSON, err := marshalOrEmpty(d.Content, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}
	taskIDsJSON, err := json.Marshal(d.TaskIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal task ids: %w", err)
	}

	query := `
INSERT INTO canvas_documents (id, title, content_json, task_ids_json, created_at)
VALUES (?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		query = `
INSERT INTO canvas_documents (id, title, content_json, task_ids_json, created_at)
VALUES ($1, $2, $3, $4, $5)`
	}

	if _, err := s.db.ExecContext(ctx, query,
		d.ID, d.Title, contentJSON, string(taskIDsJSON), d.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *SQLStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := `
SELECT id, title, content_json, task_ids_json, created_at
FROM canvas_documents WHERE id = ?`
	if s.dialect == "postgres" {
		query = `
SELECT id, title, content_json, task_ids_json, created_at
FROM canvas_documents WHERE id = $1`
	}

	var (
		d           Document
		contentJSON sql.NullString
		taskIDsJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.Title, &contentJSON, &taskIDsJSON, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if contentJSON.Valid && contentJSON.String != "" && contentJSON.String != "{}" {
		if err := json.Unmarshal([]byte(contentJSON.String), &d.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
	}
	if taskIDsJSON.Valid && taskIDsJSON.String != "" {
		if err := json.Unmarshal([]byte(taskIDsJSON.String), &d.TaskIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task ids: %w", err)
		}
	}
	return &d, nil
}

// AppendTaskIDs merges taskIDs into the document's link list. Linking the
// same task twice is a no-op, so webhook redeliveries stay idempotent.
func (s *SQLStore) AppendTaskIDs(ctx context.Context, documentID string, taskIDs ...string) error {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	merged := doc.TaskIDs
	changed := false
	for _, id := range taskIDs {
		if id == "" || slices.Contains(merged, id) {
			continue
		}
		merged = append(merged, id)
		changed = true
	}
	if !changed {
		return nil
	}

	taskIDsJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal task ids: %w", err)
	}

	query := `UPDATE canvas_documents SET task_ids_json = ? WHERE id = ?`
	if s.dialect == "postgres" {
		query = `UPDATE canvas_documents SET task_ids_json = $1 WHERE id = $2`
	}
	if _, err := s.db.ExecContext(ctx, query, string(taskIDsJSON), documentID); err != nil {
		return fmt.Errorf("failed to update document links: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func marshalOrEmpty(m map[string]any, empty string) (string, error) {
	if len(m) == 0 {
		return empty, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Compile-time interface compliance check
var _ Store = (*SQLStore)(nil)
