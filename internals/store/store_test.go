package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), testutil.TempDBPath(t), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateTask(ctx, "build", "make build", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateTask(ctx, "test", "make test", "runs the suite")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("unexpected ids %d %d", first.ID, second.ID)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != "build" || tasks[1].Description != "runs the suite" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if tasks[0].Status != schemas.TaskStatusPending || tasks[0].StartTime != nil || tasks[0].EndTime != nil {
		t.Fatalf("expected fresh pending task, got %+v", tasks[0])
	}
}

func TestUpdateTaskKeepsStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "lint", "golangci-lint run", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, task.ID, schemas.TaskStatusCompleted, time.Now()); err != nil {
		t.Fatalf("status: %v", err)
	}

	updated, err := s.UpdateTask(ctx, task.ID, "vet", "go vet ./...", "static checks")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "vet" || updated.Command != "go vet ./..." || updated.Description != "static checks" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.Status != schemas.TaskStatusCompleted {
		t.Fatalf("expected status to be kept, got %s", updated.Status)
	}

	if _, err := s.UpdateTask(ctx, 999, "x", "y", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTaskStatusTimes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "sleep", "sleep 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	started := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	if err := s.UpdateTaskStatus(ctx, task.ID, schemas.TaskStatusRunning, started); err != nil {
		t.Fatalf("running: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != schemas.TaskStatusRunning || got.StartTime == nil || !got.StartTime.Equal(started) || got.EndTime != nil {
		t.Fatalf("unexpected running task: %+v", got)
	}

	ended := started.Add(time.Minute)
	if err := s.UpdateTaskStatus(ctx, task.ID, schemas.TaskStatusInterrupted, ended); err != nil {
		t.Fatalf("interrupted: %v", err)
	}
	got, err = s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != schemas.TaskStatusInterrupted || got.EndTime == nil || !got.EndTime.Equal(ended) || !got.StartTime.Equal(started) {
		t.Fatalf("unexpected interrupted task: %+v", got)
	}

	if err := s.UpdateTaskStatus(ctx, task.ID, schemas.TaskStatusPending, time.Now()); err != nil {
		t.Fatalf("pending: %v", err)
	}
	got, err = s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartTime != nil || got.EndTime != nil {
		t.Fatalf("expected times to be cleared, got %+v", got)
	}

	if err := s.UpdateTaskStatus(ctx, task.ID, schemas.TaskStatus("Bogus"), time.Now()); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
	if err := s.UpdateTaskStatus(ctx, 999, schemas.TaskStatusRunning, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogsAreOrderedAndDeletedWithTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "echo", "echo hi", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := s.CreateTask(ctx, "other", "true", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now()
	for _, text := range []string{"first", "second", "third"} {
		if err := s.AppendLog(ctx, task.ID, at, text); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.AppendLog(ctx, other.ID, at, "unrelated"); err != nil {
		t.Fatalf("append: %v", err)
	}

	lines, err := s.ListLogs(ctx, task.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(lines) != 3 || lines[0].Text != "first" || lines[2].Text != "third" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if lines[0].TaskID != task.ID || !lines[0].Timestamp.Equal(at.UTC()) {
		t.Fatalf("unexpected line metadata: %+v", lines[0])
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	lines, err = s.ListLogs(ctx, task.ID)
	if err != nil {
		t.Fatalf("list logs after delete: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected logs to cascade, got %d", len(lines))
	}
	if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	remaining, err := s.ListLogs(ctx, other.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected other task log to survive, got %d", len(remaining))
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := testutil.TempDBPath(t)
	ctx := context.Background()

	s, err := Open(ctx, path, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.CreateTask(ctx, "keep", "true", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(ctx, path, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "keep" {
		t.Fatalf("unexpected tasks after reopen: %+v", tasks)
	}
}
