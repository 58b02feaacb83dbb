package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/store"
	"github.com/Oudwins/shellrunner/internals/testutil"
)

func TestGenerateEmptyStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, testutil.TempDBPath(t), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	dir := filepath.Join(t.TempDir(), "reports")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	path, err := Generate(ctx, st, dir, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if filepath.Base(path) != "shellrunner_report_20260304_050607.html" {
		t.Fatalf("unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "No tasks found") {
		t.Fatalf("expected empty notice in report")
	}
	if !strings.Contains(string(data), "Generated on: 2026-03-04 05:06:07") {
		t.Fatalf("expected generation time in report")
	}
}

func TestGenerateRendersTasksAndEscapesOutput(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, testutil.TempDBPath(t), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	done, err := st.CreateTask(ctx, "build", "make build", "compile everything")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateTask(ctx, "later", "echo later", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	if err := st.UpdateTaskStatus(ctx, done.ID, schemas.TaskStatusRunning, at); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := st.UpdateTaskStatus(ctx, done.ID, schemas.TaskStatusError, at.Add(time.Second)); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := st.AppendLog(ctx, done.ID, at, "<script>alert(1)</script>"); err != nil {
		t.Fatalf("append: %v", err)
	}

	path, err := Generate(ctx, st, t.TempDir(), at)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"build",
		"status-Error",
		"compile everything",
		"2026-03-04 05:06:07 - &lt;script&gt;alert(1)&lt;/script&gt;",
		"End Time:</span><span class=\"info-value\">2026-03-04 05:06:08",
		"status-Pending",
		"N/A",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected report to contain %q\n%s", want, html)
		}
	}
	if strings.Contains(html, "<script>alert") {
		t.Fatalf("output must be escaped")
	}
}

func TestGenerateDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, testutil.TempDBPath(t), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	dir := t.TempDir()
	now := time.Now()
	first, err := Generate(ctx, st, dir, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := Generate(ctx, st, dir, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second {
		t.Fatalf("expected a second file, got %s twice", first)
	}
	if !strings.HasSuffix(second, "_1.html") {
		t.Fatalf("unexpected second name %s", second)
	}
}
