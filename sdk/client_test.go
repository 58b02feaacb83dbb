package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
)

func TestClientVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("  test-version  "))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	version, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "test-version" {
		t.Fatalf("expected trimmed version, got %q", version)
	}
	if !IsRunning(server.URL) {
		t.Fatalf("expected server to be reported running")
	}
	if IsRunning("") {
		t.Fatalf("empty base url must not be running")
	}
}

func TestClientTaskFlows(t *testing.T) {
	var created schemas.TaskCreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case http.MethodPost + " /tasks":
			_ = json.NewDecoder(r.Body).Decode(&created)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(&schemas.Task{ID: 1, Name: created.Name, Command: created.Command, Status: schemas.TaskStatusPending})
		case http.MethodGet + " /tasks":
			_ = json.NewEncoder(w).Encode(&schemas.TaskListResponse{Tasks: []schemas.Task{{ID: 1, Name: "build", Command: "make", Status: schemas.TaskStatusPending}}})
		case http.MethodPut + " /tasks/1":
			var request schemas.TaskUpdateRequest
			_ = json.NewDecoder(r.Body).Decode(&request)
			_ = json.NewEncoder(w).Encode(&schemas.Task{ID: 1, Name: request.Name, Command: request.Command, Status: schemas.TaskStatusPending})
		case http.MethodDelete + " /tasks/1":
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet + " /tasks/1/logs":
			_ = json.NewEncoder(w).Encode(&schemas.TaskLogsResponse{TaskID: 1, Lines: []schemas.LogLine{{ID: 1, TaskID: 1, Text: "hello"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	task, err := client.CreateTask(ctx, schemas.TaskCreateRequest{Name: "build", Command: "make"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != 1 || created.Command != "make" {
		t.Fatalf("unexpected create: %+v %+v", task, created)
	}

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "build" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	updated, err := client.UpdateTask(ctx, 1, schemas.TaskUpdateRequest{Name: "test", Command: "make test"})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Command != "make test" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	logs, err := client.TaskLogs(ctx, 1)
	if err != nil {
		t.Fatalf("TaskLogs: %v", err)
	}
	if len(logs.Lines) != 1 || logs.Lines[0].Text != "hello" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if err := client.DeleteTask(ctx, 1); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
}

func TestClientRunFlows(t *testing.T) {
	var eventsQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case http.MethodPost + " /run":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(&schemas.RunStartResponse{RunID: "run-1"})
		case http.MethodGet + " /run":
			_ = json.NewEncoder(w).Encode(&schemas.RunSnapshot{State: schemas.RunStateRunning, RunID: "run-1"})
		case http.MethodPost + " /run/stop":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(&schemas.RunSnapshot{State: schemas.RunStateStopping, RunID: "run-1"})
		case http.MethodGet + " /events":
			eventsQuery = r.URL.RawQuery
			_ = json.NewEncoder(w).Encode(&schemas.EventsResponse{Events: []schemas.Event{{Seq: 5, Type: schemas.EventNotice, Text: "hi"}}, Next: 5})
		case http.MethodPost + " /reports":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(&schemas.ReportResponse{Path: "/tmp/report.html"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	started, err := client.StartRun(ctx)
	if err != nil || started.RunID != "run-1" {
		t.Fatalf("StartRun: %v %+v", err, started)
	}
	status, err := client.RunStatus(ctx)
	if err != nil || status.State != schemas.RunStateRunning {
		t.Fatalf("RunStatus: %v %+v", err, status)
	}
	stopped, err := client.StopRun(ctx)
	if err != nil || stopped.State != schemas.RunStateStopping {
		t.Fatalf("StopRun: %v %+v", err, stopped)
	}
	events, err := client.Events(ctx, 4, true)
	if err != nil || events.Next != 5 || len(events.Events) != 1 {
		t.Fatalf("Events: %v %+v", err, events)
	}
	if eventsQuery != "since=4&wait=true" {
		t.Fatalf("unexpected events query %q", eventsQuery)
	}
	report, err := client.CreateReport(ctx)
	if err != nil || report.Path != "/tmp/report.html" {
		t.Fatalf("CreateReport: %v %+v", err, report)
	}
	if err := client.Shutdown(ctx); err != ErrShutdownUnsupported {
		t.Fatalf("expected ErrShutdownUnsupported, got %v", err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Status: "failed", Code: "run_active", Message: "busy", Errors: map[string][]string{"name": {"required"}}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.StartRun(ctx)
	if err == nil {
		t.Fatalf("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "run_active" || !strings.Contains(apiErr.Error(), "busy") {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if len(apiErr.Fields["name"]) != 1 {
		t.Fatalf("expected field errors, got %+v", apiErr.Fields)
	}
	if !IsCode(err, "run_active") || IsCode(err, "no_tasks") {
		t.Fatalf("IsCode mismatch")
	}

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway"))
	}))
	defer plain.Close()

	client = NewClient(WithBaseURL(plain.URL), WithHTTPClient(plain.Client()))
	_, err = client.Version(ctx)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
