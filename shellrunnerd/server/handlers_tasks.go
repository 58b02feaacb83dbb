package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Oudwins/shellrunner/internals/logbuf"
	"github.com/Oudwins/shellrunner/internals/schemas"
	z "github.com/Oudwins/zog"
)

func (s *Server) HandlerListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Scheduler.Tasks(r.Context())
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	RenderJSON(w, r, schemas.TaskListResponse{Tasks: tasks})
}

func (s *Server) HandlerCreateTask(w http.ResponseWriter, r *http.Request) {
	var request schemas.TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.TaskCreateSchema.Validate(&request); len(issues) > 0 {
		payload := JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues))
		RenderJSON(w, r, payload, Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.Scheduler.AddTask(r.Context(), request.Name, request.Command, request.Description)
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	logbuf.FromContext(r.Context()).Info("task created", slog.Int64("task_id", task.ID))
	RenderJSON(w, r, task, Render.Status(http.StatusCreated))
}

func (s *Server) HandlerUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "invalid task id", nil), Render.Status(http.StatusBadRequest))
		return
	}
	var request schemas.TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.TaskUpdateSchema.Validate(&request); len(issues) > 0 {
		payload := JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues))
		RenderJSON(w, r, payload, Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.Scheduler.UpdateTask(r.Context(), id, request.Name, request.Command, request.Description)
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	logbuf.FromContext(r.Context()).Info("task updated", slog.Int64("task_id", task.ID))
	RenderJSON(w, r, task)
}

func (s *Server) HandlerDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "invalid task id", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if err := s.Scheduler.DeleteTask(r.Context(), id); err != nil {
		RenderEngineError(w, r, err)
		return
	}
	logbuf.FromContext(r.Context()).Info("task deleted", slog.Int64("task_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandlerTaskLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(r)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "invalid task id", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if _, err := s.Store.GetTask(r.Context(), id); err != nil {
		RenderEngineError(w, r, err)
		return
	}
	lines, err := s.Store.ListLogs(r.Context(), id)
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	RenderJSON(w, r, schemas.TaskLogsResponse{TaskID: id, Lines: lines})
}
