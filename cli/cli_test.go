package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/Oudwins/shellrunner/internals/conf"
	"github.com/Oudwins/shellrunner/internals/desktop"
	"github.com/Oudwins/shellrunner/internals/env"
	"github.com/Oudwins/shellrunner/internals/schemas"
)

func executeCLI(args []string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func setupCLIEnv(t *testing.T, baseURL string) {
	config := conf.GetConfig()
	origVersion := config.Version
	config.Version = "test-version"

	currentEnv := env.Get()
	origBase := currentEnv.BASE_URL
	currentEnv.BASE_URL = strings.TrimRight(baseURL, "/")

	t.Cleanup(func() {
		config.Version = origVersion
		currentEnv.BASE_URL = origBase
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestCLITaskFlow(t *testing.T) {
	var (
		mu      sync.Mutex
		created schemas.TaskCreateRequest
		updated schemas.TaskUpdateRequest
		deleted bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method + " " + r.URL.Path {
		case "GET /version":
			_, _ = w.Write([]byte("test-version"))
		case "POST /tasks":
			_ = json.NewDecoder(r.Body).Decode(&created)
			writeJSON(w, http.StatusCreated, schemas.Task{ID: 3, Name: created.Name, Command: created.Command, Status: schemas.TaskStatusPending})
		case "GET /tasks":
			writeJSON(w, http.StatusOK, schemas.TaskListResponse{Tasks: []schemas.Task{
				{ID: 3, Name: "build", Command: "make", Description: "compile", Status: schemas.TaskStatusCompleted},
			}})
		case "PUT /tasks/3":
			_ = json.NewDecoder(r.Body).Decode(&updated)
			writeJSON(w, http.StatusOK, schemas.Task{ID: 3, Name: updated.Name, Command: updated.Command, Description: updated.Description})
		case "DELETE /tasks/3":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		case "GET /tasks/3/logs":
			writeJSON(w, http.StatusOK, schemas.TaskLogsResponse{TaskID: 3, Lines: []schemas.LogLine{{ID: 1, TaskID: 3, Text: "compiled"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	setupCLIEnv(t, server.URL)

	output, err := executeCLI([]string{"task", "add", "--name", " build ", "--command", "make"})
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	if created.Name != "build" || !strings.Contains(output, "task: 3") {
		t.Fatalf("unexpected add: %+v %s", created, output)
	}

	output, err = executeCLI([]string{"task", "ls"})
	if err != nil {
		t.Fatalf("task ls: %v", err)
	}
	if !strings.Contains(output, "Completed") || !strings.Contains(output, "make") {
		t.Fatalf("unexpected list output: %s", output)
	}

	if _, err := executeCLI([]string{"task", "edit", "3", "--command", "make all"}); err != nil {
		t.Fatalf("task edit: %v", err)
	}
	if updated.Name != "build" || updated.Command != "make all" || updated.Description != "compile" {
		t.Fatalf("edit must keep unspecified fields, got %+v", updated)
	}

	output, err = executeCLI([]string{"task", "logs", "3"})
	if err != nil {
		t.Fatalf("task logs: %v", err)
	}
	if !strings.Contains(output, "compiled") {
		t.Fatalf("unexpected logs output: %s", output)
	}

	if _, err := executeCLI([]string{"task", "rm", "3"}); err != nil {
		t.Fatalf("task rm: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete request")
	}
}

func TestCLITaskValidation(t *testing.T) {
	if _, err := executeCLI([]string{"task", "add", "--name", "x"}); err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := executeCLI([]string{"task", "rm", "nope"}); err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestCLIRunFollow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /version":
			_, _ = w.Write([]byte("test-version"))
		case "POST /run":
			writeJSON(w, http.StatusAccepted, schemas.RunStartResponse{RunID: "run-2"})
		case "GET /events":
			if r.URL.Query().Get("since") == "0" {
				writeJSON(w, http.StatusOK, schemas.EventsResponse{Next: 3, Events: []schemas.Event{
					{Seq: 1, Type: schemas.EventRunFinished, RunID: "run-1", Text: "old run"},
					{Seq: 2, Type: schemas.EventRunStarted, RunID: "run-2", Text: "Starting 1 task(s)."},
					{Seq: 3, Type: schemas.EventOutput, RunID: "run-2", Text: "hello"},
				}})
				return
			}
			writeJSON(w, http.StatusOK, schemas.EventsResponse{Next: 5, Events: []schemas.Event{
				{Seq: 4, Type: schemas.EventStatus, RunID: "run-2", Status: schemas.TaskStatusCompleted},
				{Seq: 5, Type: schemas.EventRunFinished, RunID: "run-2", Text: "All tasks completed!"},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	setupCLIEnv(t, server.URL)

	output, err := executeCLI([]string{"run", "--follow"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "Starting 1 task(s).\nhello\nAll tasks completed!\n"
	if output != want {
		t.Fatalf("unexpected follow output %q", output)
	}
}

func TestCLIRunConflicts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /version":
			_, _ = w.Write([]byte("test-version"))
		case "POST /run":
			writeJSON(w, http.StatusConflict, map[string]string{"status": "failed", "code": "no_tasks", "message": "No tasks to run"})
		case "POST /run/stop":
			writeJSON(w, http.StatusConflict, map[string]string{"status": "failed", "code": "not_running", "message": "No task is currently running to stop"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	setupCLIEnv(t, server.URL)

	if _, err := executeCLI([]string{"run"}); err == nil || !strings.Contains(err.Error(), "no tasks to run") {
		t.Fatalf("expected no tasks error, got %v", err)
	}
	output, err := executeCLI([]string{"stop"})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(output, "No task is currently running to stop.") {
		t.Fatalf("unexpected stop output %q", output)
	}
}

func TestCLIReportOpen(t *testing.T) {
	var opened []string
	originalExec := desktop.ExecCommand
	originalGOOS := desktop.RuntimeGOOS
	desktop.ExecCommand = func(name string, args ...string) *exec.Cmd {
		opened = append(opened, args...)
		return exec.Command("sh", "-c", "true")
	}
	desktop.RuntimeGOOS = "linux"
	t.Cleanup(func() {
		desktop.ExecCommand = originalExec
		desktop.RuntimeGOOS = originalGOOS
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /version":
			_, _ = w.Write([]byte("test-version"))
		case "POST /reports":
			writeJSON(w, http.StatusCreated, schemas.ReportResponse{Path: "/tmp/shellrunner_report_20260101_000000.html"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	setupCLIEnv(t, server.URL)

	output, err := executeCLI([]string{"report", "--open"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(output, "Report generated:") || !strings.Contains(output, "shellrunner_report_20260101_000000.html") {
		t.Fatalf("unexpected report output %q", output)
	}
	if len(opened) != 1 || opened[0] != "file:///tmp/shellrunner_report_20260101_000000.html" {
		t.Fatalf("unexpected open call %v", opened)
	}
}

func TestCLIVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("daemon-version"))
	}))
	defer server.Close()
	setupCLIEnv(t, server.URL)

	output, err := executeCLI([]string{"version"})
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(output, "shellrunner: test-version") || !strings.Contains(output, "daemon: daemon-version") {
		t.Fatalf("unexpected version output %q", output)
	}
}
