// Package store persists tasks and reusable configuration snippets in
// SQLite. The pure Go driver keeps the binary free of cgo.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Task is a tracked operations task
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snippet categories. Unknown categories collapse to CategoryOther.
var validCategories = map[string]bool{
	"docker": true, "kubernetes": true, "nginx": true, "apache": true,
	"database": true, "security": true, "network": true, "cicd": true,
	"terraform": true, "ansible": true, "other": true,
}

// CategoryOther is the default snippet category
const CategoryOther = "other"

// ConfigSnippet is a stored configuration file with its generation context
type ConfigSnippet struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ConfigType  string          `json:"config_type"`
	Content     string          `json:"content"`
	Category    string          `json:"category"`
	Language    string          `json:"language"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store wraps the SQLite database
type Store struct {
	db *sql.DB
}

// timeLayout keeps the fractional seconds zero-padded so the lexicographic
// order of the stored TEXT timestamps equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed   INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config_snippets (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	config_type TEXT NOT NULL,
	content     TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT 'other',
	language    TEXT NOT NULL DEFAULT 'english',
	parameters  TEXT,
	created_at  TEXT NOT NULL
);
`

// Open creates or opens the database file and applies the schema.
// WAL mode allows concurrent reads while writing.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ".cache/opsgate.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateTask inserts a new task and fills in its ID and creation time
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, completed, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Completed, t.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask fetches one task by id
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, completed, created_at FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns all tasks, newest first
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, completed, created_at FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck
	}()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask rewrites a task's mutable fields
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, completed = ? WHERE id = ?`,
		t.Title, t.Description, t.Completed, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(res)
}

// DeleteTask removes a task by id
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireRow(res)
}

// CreateSnippet inserts a new configuration snippet. An unknown or empty
// category collapses to "other"; language defaults to english.
func (s *Store) CreateSnippet(ctx context.Context, c *ConfigSnippet) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	if !validCategories[c.Category] {
		c.Category = CategoryOther
	}
	if c.Language == "" {
		c.Language = "english"
	}

	var params any
	if len(c.Parameters) > 0 {
		params = string(c.Parameters)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_snippets (id, title, description, config_type, content, category, language, parameters, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.ConfigType, c.Content, c.Category, c.Language, params,
		c.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert snippet: %w", err)
	}
	return nil
}

// GetSnippet fetches one snippet by id
func (s *Store) GetSnippet(ctx context.Context, id string) (*ConfigSnippet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, config_type, content, category, language, parameters, created_at
		 FROM config_snippets WHERE id = ?`, id)
	return scanSnippet(row)
}

// ListSnippets returns snippets, optionally filtered by category, newest first
func (s *Store) ListSnippets(ctx context.Context, category string) ([]ConfigSnippet, error) {
	query := `SELECT id, title, description, config_type, content, category, language, parameters, created_at
		 FROM config_snippets`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck
	}()

	var snippets []ConfigSnippet
	for rows.Next() {
		c, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, *c)
	}
	return snippets, rows.Err()
}

// DeleteSnippet removes a snippet by id
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM config_snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var created string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("failed to parse task timestamp: %w", err)
	}
	return &t, nil
}

func scanSnippet(row rowScanner) (*ConfigSnippet, error) {
	var c ConfigSnippet
	var created string
	var params sql.NullString
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ConfigType, &c.Content,
		&c.Category, &c.Language, &params, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snippet: %w", err)
	}
	if params.Valid {
		c.Parameters = json.RawMessage(params.String)
	}
	c.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snippet timestamp: %w", err)
	}
	return &c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
