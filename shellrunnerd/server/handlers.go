package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Oudwins/shellrunner/internals/logbuf"
	"github.com/Oudwins/shellrunner/internals/report"
	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
)

func (s *Server) HandlerVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Base.Config.Version))
}

func (s *Server) HandlerShutdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("shutting down"))
	s.Shutdown()
}

func (s *Server) HandlerRunStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Scheduler.Snapshot(r.Context())
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	RenderJSON(w, r, snapshot)
}

func (s *Server) HandlerStartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.Scheduler.StartRun(r.Context())
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	logbuf.FromContext(r.Context()).Info("run started", slog.String("run_id", runID))
	RenderJSON(w, r, schemas.RunStartResponse{RunID: runID}, Render.Status(http.StatusAccepted))
}

func (s *Server) HandlerStopRun(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.StopCurrent(r.Context()); err != nil {
		RenderEngineError(w, r, err)
		return
	}
	snapshot, err := s.Scheduler.Snapshot(r.Context())
	if err != nil {
		RenderEngineError(w, r, err)
		return
	}
	RenderJSON(w, r, snapshot, Render.Status(http.StatusAccepted))
}

// HandlerEvents returns the events after ?since=N. With ?wait=1 it holds the
// request until something happens or the wait window closes.
func (s *Server) HandlerEvents(w http.ResponseWriter, r *http.Request) {
	query, issues := parseEventsQuery(r)
	if issues != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Invalid query", issues), Render.Status(http.StatusBadRequest))
		return
	}

	if !query.Wait {
		events, next := s.Events.Since(uint64(query.Since))
		RenderJSON(w, r, schemas.EventsResponse{Events: events, Next: next})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.EventsWait)
	defer cancel()
	events, next, err := s.Events.Wait(ctx, uint64(query.Since))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		// client went away
		return
	}
	RenderJSON(w, r, schemas.EventsResponse{Events: events, Next: next})
}

func (s *Server) HandlerCreateReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.SecondLong)
	defer cancel()

	path, err := report.Generate(ctx, s.Store, s.Base.Config.Reports.Dir, s.now())
	if err != nil {
		logbuf.FromContext(r.Context()).Error("report generation failed", slog.Any("error", err))
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to generate report: "+err.Error(), nil), Render.Status(http.StatusInternalServerError))
		return
	}
	logbuf.FromContext(r.Context()).Info("report generated", slog.String("path", path))
	RenderJSON(w, r, schemas.ReportResponse{Path: path}, Render.Status(http.StatusCreated))
}

type eventsQuery struct {
	Since int  `zog:"since"`
	Wait  bool `zog:"wait"`
}

var eventsQuerySchema = z.Struct(z.Shape{
	"Since": z.Int().Default(0).GTE(0, z.Message("since must not be negative")),
	"Wait":  z.Bool().Default(false),
})

func parseEventsQuery(r *http.Request) (eventsQuery, map[string][]string) {
	var query eventsQuery
	if issues := eventsQuerySchema.Parse(zhttp.Request(r), &query); issues != nil {
		return query, z.Issues.Flatten(issues)
	}
	return query, nil
}
