package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Oudwins/shellrunner/internals/logbuf"
	"github.com/Oudwins/shellrunner/internals/scheduler"
	"github.com/Oudwins/shellrunner/internals/store"
	"github.com/go-chi/chi/v5"
)

type JsonResponseStatus string

const (
	JsonResponseStatusSuccess JsonResponseStatus = "success"
	JsonResponseStatusFailed  JsonResponseStatus = "failed"
)

type JsonResponseErrorCode string

const (
	JsonResponseErrorCodeInvalidJson      JsonResponseErrorCode = "invalid_json"
	JsonResponseErrorCodeValidationFailed JsonResponseErrorCode = "validation_failed"
	JsonResponseErroCodeInternal          JsonResponseErrorCode = "internal"
	JsonResponseErrorCodeNotFound         JsonResponseErrorCode = "not_found"
	JsonResponseErrorCodeRunActive        JsonResponseErrorCode = "run_active"
	JsonResponseErrorCodeNoTasks          JsonResponseErrorCode = "no_tasks"
	JsonResponseErrorCodeNotRunning       JsonResponseErrorCode = "not_running"
)

type ErrorResponse struct {
	Status  JsonResponseStatus    `json:"status"`
	Code    JsonResponseErrorCode `json:"code"`
	Message string                `json:"message"`
	Errors  map[string][]string   `json:"errors,omitempty"`
}

func JsonResponseError(code JsonResponseErrorCode, message string, errors map[string][]string) *ErrorResponse {
	return &ErrorResponse{
		Status:  JsonResponseStatusFailed,
		Code:    code,
		Message: message,
		Errors:  errors,
	}
}

type RenderOption = func(w http.ResponseWriter, r *http.Request)

type Renderer struct {
}

func (r *Renderer) Status(status int) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

var Render = Renderer{}

func RenderJSON(w http.ResponseWriter, r *http.Request, payload any, opts ...RenderOption) {
	w.Header().Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(w, r)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// RenderEngineError maps scheduler and store errors to their HTTP form.
func RenderEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrRunActive):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeRunActive, "A run is in progress; wait for it to finish or stop it first", nil), Render.Status(http.StatusConflict))
	case errors.Is(err, scheduler.ErrNoTasks):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNoTasks, "No tasks to run", nil), Render.Status(http.StatusConflict))
	case errors.Is(err, scheduler.ErrNotRunning):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotRunning, "No task is currently running to stop", nil), Render.Status(http.StatusConflict))
	case errors.Is(err, scheduler.ErrTaskNotFound), errors.Is(err, store.ErrNotFound):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "Task not found", nil), Render.Status(http.StatusNotFound))
	case errors.Is(err, scheduler.ErrInvalidTask):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
	default:
		logbuf.FromContext(r.Context()).Error("engine error", slog.Any("error", err))
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, err.Error(), nil), Render.Status(http.StatusInternalServerError))
	}
}

func taskIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
