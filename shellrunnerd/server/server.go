package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Oudwins/shellrunner/internals/logbuf"
	"github.com/Oudwins/shellrunner/internals/runner"
	"github.com/Oudwins/shellrunner/internals/scheduler"
	"github.com/Oudwins/shellrunner/internals/store"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/internals/transcript"
	"github.com/Oudwins/shellrunner/sdk"
	"github.com/Oudwins/shellrunner/shellrunnerd/baseserver"
)

type Server struct {
	Base      *baseserver.BaseServer
	Logbuf    *logbuf.Logger
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Events    *transcript.Buffer

	httpServer *http.Server
	stopEngine context.CancelFunc
	engineDone chan struct{}
	now        func() time.Time
}

func New(base *baseserver.BaseServer) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
	defer cancel()

	st, err := store.Open(ctx, base.Config.Server.DBPath(), base.Logger)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	events := transcript.New(transcript.DefaultCapacity)
	runnerConfig := base.Config.Runner
	sched := scheduler.New(st, events, scheduler.Options{
		Runner: runner.Config{
			Shell:        runnerConfig.Shell,
			CancelWait:   runnerConfig.CancelWait(),
			CleanupGrace: runnerConfig.CleanupGrace(),
			Logger:       base.Logger,
		},
		Logger: base.Logger,
	})

	return &Server{
		Base: base,
		Logbuf: logbuf.New(
			slog.String("version", base.Config.Version),
			slog.Int("port", base.Env.PORT),
		),
		Store:     st,
		Scheduler: sched,
		Events:    events,
		now:       time.Now,
	}, nil
}

// StartEngine runs the scheduler loop and loads the stored tasks.
func (s *Server) StartEngine(ctx context.Context) error {
	engineCtx, cancel := context.WithCancel(context.Background())
	s.stopEngine = cancel
	s.engineDone = make(chan struct{})
	go func() {
		defer close(s.engineDone)
		s.Scheduler.Run(engineCtx)
	}()
	return s.Scheduler.Load(ctx)
}

// StopEngine interrupts the task in flight, waits for the scheduler to
// record it and closes the store.
func (s *Server) StopEngine() {
	if s.stopEngine != nil {
		s.stopEngine()
		<-s.engineDone
		s.stopEngine = nil
	}
	if err := s.Store.Close(); err != nil {
		s.Base.Logger.Error("failed to close task store", slog.Any("error", err))
	}
}

// SafeStart starts the daemon in this process unless one already answers.
func (s *Server) SafeStart() error {
	if sdk.IsRunning(s.Base.Env.BASE_URL) {
		return nil
	}

	errs := make(chan error, 1)
	go func() {
		errs <- s.Start()
	}()

	if sdk.WaitForStart(s.Base.Env.BASE_URL, s.Base.Logger) {
		return nil
	}
	select {
	case err := <-errs:
		return err
	default:
		return errors.New("couldn't start server")
	}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
	err := s.StartEngine(ctx)
	cancel()
	if err != nil {
		s.StopEngine()
		return err
	}
	defer s.StopEngine()

	listener, err := net.Listen("tcp", s.Base.Env.LISTEN_ADDR)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: timeouts.SecondDefault,
	}
	s.Base.Logger.Info("server listening", slog.String("addr", listener.Addr().String()), slog.String("version", s.Base.Config.Version))
	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the running task, then the HTTP server.
func (s *Server) Shutdown() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondShort)
		defer cancel()
		if err := s.Scheduler.StopCurrent(ctx); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
			s.Base.Logger.Warn("failed to stop running task", slog.Any("error", err))
		}
		if s.httpServer == nil {
			s.Base.Logger.Error("shutdown failed", slog.Any("error", errors.New("server not initialized")))
			return
		}
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Base.Logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()
}
