// Package scheduler drives the ordered task list through the runner one task
// at a time. All state lives on the goroutine started by Run; the exported
// methods hand work to it and wait for the answer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Oudwins/shellrunner/internals/runner"
	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/google/uuid"
)

var (
	ErrRunActive    = errors.New("a run is in progress")
	ErrNoTasks      = errors.New("no tasks to run")
	ErrNotRunning   = errors.New("no task is currently running")
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("task name and command are required")
	ErrClosed       = errors.New("scheduler is not running")
)

type Store interface {
	ListTasks(ctx context.Context) ([]schemas.Task, error)
	CreateTask(ctx context.Context, name, command, description string) (schemas.Task, error)
	UpdateTask(ctx context.Context, id int64, name, command, description string) (schemas.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	UpdateTaskStatus(ctx context.Context, id int64, status schemas.TaskStatus, at time.Time) error
	AppendLog(ctx context.Context, taskID int64, at time.Time, text string) error
}

// Observer receives engine events. Output events arrive from runner
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	Publish(event schemas.Event)
}

type ObserverFunc func(event schemas.Event)

func (f ObserverFunc) Publish(event schemas.Event) { f(event) }

// Handle is the part of a runner the scheduler needs.
type Handle interface {
	Cancel()
	Outcome() <-chan runner.Outcome
}

type StartFunc func(job runner.Job, sink runner.Sink) Handle

type Options struct {
	Runner runner.Config
	// Start launches a task. Defaults to runner.Start with Runner.
	Start  StartFunc
	Logger *slog.Logger
}

type outcomeMsg struct {
	handle  Handle
	index   int
	outcome runner.Outcome
}

type Scheduler struct {
	store    Store
	observer Observer
	log      *slog.Logger
	start    StartFunc

	cmds     chan func(ctx context.Context)
	outcomes chan outcomeMsg
	quit     chan struct{}

	// owned by the loop
	tasks      []schemas.Task
	state      schemas.RunState
	runID      string
	position   int
	lastFinish schemas.FinishReason
	active     Handle
}

func New(store Store, observer Observer, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = ObserverFunc(func(schemas.Event) {})
	}
	start := opts.Start
	if start == nil {
		cfg := opts.Runner
		if cfg.Logger == nil {
			cfg.Logger = logger
		}
		start = func(job runner.Job, sink runner.Sink) Handle {
			return runner.Start(cfg, job, sink)
		}
	}
	return &Scheduler{
		store:    store,
		observer: observer,
		log:      logger,
		start:    start,
		cmds:     make(chan func(ctx context.Context)),
		outcomes: make(chan outcomeMsg),
		quit:     make(chan struct{}),
		state:    schemas.RunStateIdle,
		position: -1,
	}
}

// Run is the control loop. It returns when ctx is cancelled, after stopping
// the task in flight and recording it as interrupted.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.quit)
	storeCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(storeCtx)
			return
		case fn := <-s.cmds:
			fn(storeCtx)
		case msg := <-s.outcomes:
			s.onOutcome(storeCtx, msg)
		}
	}
}

func (s *Scheduler) shutdown(ctx context.Context) {
	if s.active == nil {
		return
	}
	s.log.Info("stopping active task before shutdown", slog.Int("position", s.position))
	s.state = schemas.RunStateStopping
	handle := s.active
	go handle.Cancel()
	for s.active == handle {
		msg := <-s.outcomes
		s.onOutcome(ctx, msg)
	}
}

// do runs fn on the loop goroutine and waits for it.
func (s *Scheduler) do(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	wrapped := func(storeCtx context.Context) {
		defer close(done)
		fn(storeCtx)
	}
	select {
	case s.cmds <- wrapped:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Load replaces the in-memory list with what the store holds. Statuses left
// over from a previous process are kept as they are.
func (s *Scheduler) Load(ctx context.Context) error {
	var loadErr error
	err := s.do(ctx, func(storeCtx context.Context) {
		if s.state.Active() {
			loadErr = ErrRunActive
			return
		}
		tasks, err := s.store.ListTasks(storeCtx)
		if err != nil {
			loadErr = fmt.Errorf("load tasks: %w", err)
			return
		}
		s.tasks = tasks
		s.log.Info("tasks loaded", slog.Int("count", len(tasks)))
	})
	if err != nil {
		return err
	}
	return loadErr
}

// StartRun resets every task to Pending and starts the first one. It returns
// the id of the new run.
func (s *Scheduler) StartRun(ctx context.Context) (string, error) {
	var runID string
	var runErr error
	err := s.do(ctx, func(storeCtx context.Context) {
		runID, runErr = s.startRun(storeCtx)
	})
	if err != nil {
		return "", err
	}
	return runID, runErr
}

// StopCurrent cancels the task in flight. The run finishes as interrupted
// once the task reports back.
func (s *Scheduler) StopCurrent(ctx context.Context) error {
	var stopErr error
	err := s.do(ctx, func(context.Context) {
		stopErr = s.stopCurrent()
	})
	if err != nil {
		return err
	}
	return stopErr
}

func (s *Scheduler) AddTask(ctx context.Context, name, command, description string) (schemas.Task, error) {
	name, command, description = strings.TrimSpace(name), strings.TrimSpace(command), strings.TrimSpace(description)
	if name == "" || command == "" {
		return schemas.Task{}, ErrInvalidTask
	}
	var task schemas.Task
	var addErr error
	err := s.do(ctx, func(storeCtx context.Context) {
		task, addErr = s.store.CreateTask(storeCtx, name, command, description)
		if addErr != nil {
			addErr = fmt.Errorf("create task: %w", addErr)
			return
		}
		s.tasks = append(s.tasks, task)
		s.log.Info("task added", slog.Int64("task_id", task.ID), slog.String("name", task.Name))
	})
	if err != nil {
		return schemas.Task{}, err
	}
	return task, addErr
}

func (s *Scheduler) UpdateTask(ctx context.Context, id int64, name, command, description string) (schemas.Task, error) {
	name, command, description = strings.TrimSpace(name), strings.TrimSpace(command), strings.TrimSpace(description)
	if name == "" || command == "" {
		return schemas.Task{}, ErrInvalidTask
	}
	var task schemas.Task
	var updateErr error
	err := s.do(ctx, func(storeCtx context.Context) {
		if s.state.Active() {
			updateErr = ErrRunActive
			return
		}
		index := s.indexOf(id)
		if index < 0 {
			updateErr = ErrTaskNotFound
			return
		}
		if _, err := s.store.UpdateTask(storeCtx, id, name, command, description); err != nil {
			updateErr = fmt.Errorf("update task: %w", err)
			return
		}
		s.tasks[index].Name = name
		s.tasks[index].Command = command
		s.tasks[index].Description = description
		task = s.tasks[index]
	})
	if err != nil {
		return schemas.Task{}, err
	}
	return task, updateErr
}

func (s *Scheduler) DeleteTask(ctx context.Context, id int64) error {
	var deleteErr error
	err := s.do(ctx, func(storeCtx context.Context) {
		if s.state.Active() {
			deleteErr = ErrRunActive
			return
		}
		index := s.indexOf(id)
		if index < 0 {
			deleteErr = ErrTaskNotFound
			return
		}
		if err := s.store.DeleteTask(storeCtx, id); err != nil {
			deleteErr = fmt.Errorf("delete task: %w", err)
			return
		}
		s.tasks = append(s.tasks[:index], s.tasks[index+1:]...)
		s.log.Info("task deleted", slog.Int64("task_id", id))
	})
	if err != nil {
		return err
	}
	return deleteErr
}

func (s *Scheduler) Tasks(ctx context.Context) ([]schemas.Task, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Tasks, nil
}

func (s *Scheduler) Snapshot(ctx context.Context) (schemas.RunSnapshot, error) {
	var snapshot schemas.RunSnapshot
	err := s.do(ctx, func(context.Context) {
		tasks := make([]schemas.Task, len(s.tasks))
		copy(tasks, s.tasks)
		snapshot = schemas.RunSnapshot{
			State:      s.state,
			RunID:      s.runID,
			Position:   s.position,
			LastFinish: s.lastFinish,
			Tasks:      tasks,
		}
	})
	return snapshot, err
}

func (s *Scheduler) startRun(ctx context.Context) (string, error) {
	if s.state.Active() {
		return "", ErrRunActive
	}
	if len(s.tasks) == 0 {
		return "", ErrNoTasks
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	s.runID = id.String()
	s.state = schemas.RunStateRunning
	s.lastFinish = ""
	s.position = -1

	now := time.Now()
	for i := range s.tasks {
		s.tasks[i].Status = schemas.TaskStatusPending
		s.tasks[i].StartTime = nil
		s.tasks[i].EndTime = nil
		s.persistStatus(ctx, s.tasks[i].ID, schemas.TaskStatusPending, now)
	}

	s.log.Info("run started", slog.String("run_id", s.runID), slog.Int("tasks", len(s.tasks)))
	s.emit(schemas.Event{Type: schemas.EventRunStarted, Text: fmt.Sprintf("Starting %d task(s).", len(s.tasks))})
	s.advance(ctx)
	return s.runID, nil
}

func (s *Scheduler) advance(ctx context.Context) {
	s.position++
	if s.position >= len(s.tasks) {
		s.finish(schemas.FinishReasonAllCompleted)
		return
	}

	index := s.position
	now := time.Now()
	task := &s.tasks[index]
	task.Status = schemas.TaskStatusRunning
	task.StartTime = &now
	task.EndTime = nil
	s.persistStatus(ctx, task.ID, schemas.TaskStatusRunning, now)
	s.emit(schemas.Event{Type: schemas.EventStatus, TaskIndex: index, TaskID: task.ID, Status: task.Status})

	job := runner.Job{TaskIndex: index, TaskID: task.ID, Command: task.Command}
	handle := s.start(job, s.sink(ctx, s.runID))
	s.active = handle
	go func() {
		out := <-handle.Outcome()
		select {
		case s.outcomes <- outcomeMsg{handle: handle, index: index, outcome: out}:
		case <-s.quit:
		}
	}()
}

func (s *Scheduler) onOutcome(ctx context.Context, msg outcomeMsg) {
	if msg.handle != s.active {
		s.log.Warn("ignoring outcome from stale runner", slog.Int("index", msg.index))
		return
	}
	s.active = nil

	status := statusFor(msg.outcome)
	now := time.Now()
	task := &s.tasks[msg.index]
	task.Status = status
	task.EndTime = &now
	s.persistStatus(ctx, task.ID, status, now)
	s.emit(schemas.Event{Type: schemas.EventStatus, TaskIndex: msg.index, TaskID: task.ID, Status: status})
	s.log.Info("task finished", slog.String("run_id", s.runID), slog.Int64("task_id", task.ID), slog.String("outcome", msg.outcome.String()))

	if msg.outcome.Kind == runner.Interrupted || s.state == schemas.RunStateStopping {
		s.finish(schemas.FinishReasonInterrupted)
		return
	}
	s.advance(ctx)
}

func (s *Scheduler) stopCurrent() error {
	switch s.state {
	case schemas.RunStateStopping:
		return nil
	case schemas.RunStateRunning:
	default:
		s.emit(schemas.Event{Type: schemas.EventNotice, Text: "No task is currently running to stop."})
		return ErrNotRunning
	}
	if s.active == nil {
		s.emit(schemas.Event{Type: schemas.EventNotice, Text: "No task is currently running to stop."})
		return ErrNotRunning
	}

	s.state = schemas.RunStateStopping
	task := s.tasks[s.position]
	s.log.Info("stopping task", slog.String("run_id", s.runID), slog.Int64("task_id", task.ID))
	s.emit(schemas.Event{Type: schemas.EventNotice, TaskIndex: s.position, TaskID: task.ID, Text: fmt.Sprintf("Stopping task '%s'...", task.Name)})
	// Cancel waits for the process; the loop must keep serving meanwhile.
	go s.active.Cancel()
	return nil
}

func (s *Scheduler) finish(reason schemas.FinishReason) {
	s.state = schemas.RunStateFinished
	s.lastFinish = reason
	text := "All tasks completed!"
	if reason == schemas.FinishReasonInterrupted {
		text = "Task sequence interrupted by user."
	}
	s.log.Info("run finished", slog.String("run_id", s.runID), slog.String("reason", string(reason)))
	s.emit(schemas.Event{Type: schemas.EventRunFinished, TaskIndex: s.position, Reason: reason, Text: text})
}

// sink forwards runner output to observers and the task log. It runs on the
// runner's goroutine.
func (s *Scheduler) sink(ctx context.Context, runID string) runner.Sink {
	return func(line runner.Line) {
		s.observer.Publish(schemas.Event{
			Type:      schemas.EventOutput,
			At:        line.At,
			RunID:     runID,
			TaskIndex: line.TaskIndex,
			TaskID:    line.TaskID,
			Text:      line.Text,
			Marker:    line.Marker,
		})
		if err := s.store.AppendLog(ctx, line.TaskID, line.At, line.Text); err != nil {
			s.storageWarning(runID, "append log", err)
		}
	}
}

func (s *Scheduler) persistStatus(ctx context.Context, id int64, status schemas.TaskStatus, at time.Time) {
	if err := s.store.UpdateTaskStatus(ctx, id, status, at); err != nil {
		s.storageWarning(s.runID, "update task status", err)
	}
}

func (s *Scheduler) storageWarning(runID, op string, err error) {
	s.log.Warn("storage failure", slog.String("run_id", runID), slog.String("op", op), slog.Any("error", err))
	s.observer.Publish(schemas.Event{
		Type:  schemas.EventNotice,
		At:    time.Now(),
		RunID: runID,
		Text:  fmt.Sprintf("Warning: %s failed: %v", op, err),
	})
}

func (s *Scheduler) emit(event schemas.Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if event.RunID == "" {
		event.RunID = s.runID
	}
	s.observer.Publish(event)
}

func (s *Scheduler) indexOf(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func statusFor(out runner.Outcome) schemas.TaskStatus {
	switch out.Kind {
	case runner.Completed:
		return schemas.TaskStatusCompleted
	case runner.Interrupted:
		return schemas.TaskStatusInterrupted
	default:
		return schemas.TaskStatusError
	}
}
