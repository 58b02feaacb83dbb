// Package store persists tasks and their output in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("task not found")

const timeLayout = time.RFC3339Nano

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Output lines arrive from runner goroutines while the scheduler writes
	// statuses; one connection serialises them.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, log: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, result := range results {
		s.log.Info("applied migration", slog.Int64("version", result.Source.Version), slog.String("file", result.Source.Path), slog.Duration("took", result.Duration))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateTask(ctx context.Context, name, command, description string) (schemas.Task, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (name, command, description, status)
VALUES (?, ?, ?, ?)
`, name, command, description, schemas.TaskStatusPending)
	if err != nil {
		return schemas.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return schemas.Task{}, err
	}
	return schemas.Task{
		ID:          id,
		Name:        name,
		Command:     command,
		Description: description,
		Status:      schemas.TaskStatusPending,
	}, nil
}

// UpdateTask changes the editable fields of a task. Status and times are left
// alone.
func (s *Store) UpdateTask(ctx context.Context, id int64, name, command, description string) (schemas.Task, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks
SET name = ?, command = ?, description = ?
WHERE id = ?
`, name, command, description, id)
	if err != nil {
		return schemas.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if err := expectRow(res); err != nil {
		return schemas.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task and, through the foreign key, its log.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return expectRow(res)
}

func (s *Store) GetTask(ctx context.Context, id int64) (schemas.Task, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, command, description, status, start_time, end_time
FROM tasks
WHERE id = ?
`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schemas.Task{}, ErrNotFound
	}
	return task, err
}

// UpdateTaskStatus records a status transition. Running stamps the start time
// and clears the end time, terminal statuses stamp the end time and Pending
// clears both.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status schemas.TaskStatus, at time.Time) error {
	stamp := at.UTC().Format(timeLayout)
	var (
		query string
		args  []any
	)
	switch {
	case status == schemas.TaskStatusRunning:
		query = `UPDATE tasks SET status = ?, start_time = ?, end_time = NULL WHERE id = ?`
		args = []any{status, stamp, id}
	case status.IsTerminal():
		query = `UPDATE tasks SET status = ?, end_time = ? WHERE id = ?`
		args = []any{status, stamp, id}
	case status == schemas.TaskStatusPending:
		query = `UPDATE tasks SET status = ?, start_time = NULL, end_time = NULL WHERE id = ?`
		args = []any{status, id}
	default:
		return fmt.Errorf("unknown task status %q", status)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status of task %d: %w", id, err)
	}
	return expectRow(res)
}

func (s *Store) AppendLog(ctx context.Context, taskID int64, at time.Time, text string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_logs (task_id, timestamp, log_line)
VALUES (?, ?, ?)
`, taskID, at.UTC().Format(timeLayout), text)
	if err != nil {
		return fmt.Errorf("append log for task %d: %w", taskID, err)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context) ([]schemas.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, command, description, status, start_time, end_time
FROM tasks
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []schemas.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) ListLogs(ctx context.Context, taskID int64) ([]schemas.LogLine, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, task_id, timestamp, log_line
FROM task_logs
WHERE task_id = ?
ORDER BY id
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list logs for task %d: %w", taskID, err)
	}
	defer rows.Close()

	lines := []schemas.LogLine{}
	for rows.Next() {
		var line schemas.LogLine
		var stamp string
		if err := rows.Scan(&line.ID, &line.TaskID, &stamp, &line.Text); err != nil {
			return nil, err
		}
		at, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("parse log timestamp %q: %w", stamp, err)
		}
		line.Timestamp = at
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (schemas.Task, error) {
	var task schemas.Task
	var status string
	var startTime sql.NullString
	var endTime sql.NullString
	if err := row.Scan(&task.ID, &task.Name, &task.Command, &task.Description, &status, &startTime, &endTime); err != nil {
		return schemas.Task{}, err
	}
	task.Status = schemas.TaskStatus(status)

	var err error
	if task.StartTime, err = parseOptionalTime(startTime); err != nil {
		return schemas.Task{}, err
	}
	if task.EndTime, err = parseOptionalTime(endTime); err != nil {
		return schemas.Task{}, err
	}
	return task, nil
}

func parseOptionalTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", value.String, err)
	}
	return &parsed, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
