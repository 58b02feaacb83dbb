package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/version", s.HandlerVersion)
	r.Post("/shutdown", s.HandlerShutdown)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.HandlerListTasks)
		r.Post("/", s.HandlerCreateTask)
		r.Put("/{id}", s.HandlerUpdateTask)
		r.Delete("/{id}", s.HandlerDeleteTask)
		r.Get("/{id}/logs", s.HandlerTaskLogs)
	})

	r.Get("/run", s.HandlerRunStatus)
	r.Post("/run", s.HandlerStartRun)
	r.Post("/run/stop", s.HandlerStopRun)
	r.Get("/events", s.HandlerEvents)
	r.Post("/reports", s.HandlerCreateReport)
	return r
}
