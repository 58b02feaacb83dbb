// Package runner owns the child process of a single task: it launches the
// command through the shell, streams its merged output line by line and
// reports how the task ended.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Oudwins/shellrunner/internals/linefilter"
)

const (
	DefaultShell        = "/bin/sh"
	DefaultCancelWait   = 500 * time.Millisecond
	DefaultCleanupGrace = 2 * time.Second
)

var separator = strings.Repeat("-", 60)

// outputReader wraps the read end of the output pipe. Tests swap it to inject
// read failures.
var outputReader = func(pipe *os.File) io.Reader { return pipe }

type Config struct {
	Shell        string
	CancelWait   time.Duration
	CleanupGrace time.Duration
	// Dir is the working directory of the child. Empty means the daemon's.
	Dir    string
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Shell == "" {
		c.Shell = DefaultShell
	}
	if c.CancelWait <= 0 {
		c.CancelWait = DefaultCancelWait
	}
	if c.CleanupGrace <= 0 {
		c.CleanupGrace = DefaultCleanupGrace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Runner is the handle of one running task.
type Runner struct {
	cfg  Config
	job  Job
	sink Sink
	log  *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	pipe      *os.File
	cancelled bool
	forced    bool
	// decided is set once the outcome is known. Cancel does nothing after.
	decided bool

	outcome chan Outcome
	done    chan struct{}
}

// Start launches job and returns immediately. Resolution and spawn happen
// before Start returns, so a Runner handed to a caller always has either a
// live process or an outcome already waiting.
func Start(cfg Config, job Job, sink Sink) *Runner {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = func(Line) {}
	}
	r := &Runner{
		cfg:     cfg,
		job:     job,
		sink:    sink,
		log:     cfg.Logger.With(slog.Int("task_index", job.TaskIndex), slog.Int64("task_id", job.TaskID)),
		outcome: make(chan Outcome, 1),
		done:    make(chan struct{}),
	}

	r.marker(fmt.Sprintf("[*] Running Task %d: '%s'", job.TaskIndex+1, job.Command))
	r.marker(separator)

	if err := resolve(job.Command); err != nil {
		r.log.Debug("command did not resolve", slog.String("command", job.Command), slog.Any("error", err))
		r.marker(fmt.Sprintf("[X] Error: Command '%s' not found or not executable.", firstWord(job.Command)))
		r.finish(Outcome{Kind: LaunchError, Err: err})
		return r
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		r.marker(fmt.Sprintf("[X] Error: %v", err))
		r.finish(Outcome{Kind: LaunchError, Err: fmt.Errorf("create output pipe: %w", err)})
		return r
	}

	cmd := exec.Command(r.cfg.Shell, "-c", job.Command)
	cmd.Stdout = writer
	cmd.Stderr = writer
	cmd.Dir = r.cfg.Dir
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = writer.Close()
		_ = reader.Close()
		r.marker(fmt.Sprintf("[X] Error: %v", err))
		r.finish(Outcome{Kind: LaunchError, Err: fmt.Errorf("start %s: %w", r.cfg.Shell, err)})
		return r
	}
	// The child holds its own copy; ours must go so EOF arrives when it exits.
	_ = writer.Close()

	r.mu.Lock()
	r.cmd = cmd
	r.pipe = reader
	r.mu.Unlock()

	r.log.Debug("task process started", slog.Int("pid", cmd.Process.Pid), slog.String("command", job.Command))
	go r.stream(cmd, reader)
	return r
}

// Outcome delivers exactly one value, after the last line has been emitted.
func (r *Runner) Outcome() <-chan Outcome {
	return r.outcome
}

// Done is closed once the runner has finished, cleanup included.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Cancel asks the task to stop. It signals the process group, waits up to
// CancelWait for the runner to wind down and kills the group if it has not.
// Safe to call more than once and from any goroutine.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.decided || r.cmd == nil {
		r.mu.Unlock()
		return
	}
	first := !r.cancelled
	r.cancelled = true
	pid := r.cmd.Process.Pid
	r.mu.Unlock()

	if first {
		r.log.Debug("terminating task process group", slog.Int("pid", pid))
		if err := terminateGroup(pid); err != nil {
			r.log.Warn("failed to signal task process group", slog.Int("pid", pid), slog.Any("error", err))
		}
	}

	timer := time.NewTimer(r.cfg.CancelWait)
	defer timer.Stop()
	select {
	case <-r.done:
		return
	case <-timer.C:
	}

	r.mu.Lock()
	if r.decided || r.forced {
		r.mu.Unlock()
		return
	}
	r.forced = true
	pipe := r.pipe
	r.mu.Unlock()

	r.log.Warn("task did not stop in time, killing process group", slog.Int("pid", pid))
	if err := killGroup(pid); err != nil {
		r.log.Warn("failed to kill task process group", slog.Int("pid", pid), slog.Any("error", err))
	}
	// A grandchild outside the group can keep the write end open.
	_ = pipe.Close()
}

func (r *Runner) stream(cmd *exec.Cmd, pipe *os.File) {
	defer close(r.done)

	readErr := r.forward(outputReader(pipe))
	var waitErr error
	if readErr != nil {
		waitErr = r.stopAfterReadError(cmd)
	} else {
		waitErr = cmd.Wait()
	}

	r.mu.Lock()
	r.decided = true
	cancelled := r.cancelled
	forced := r.forced
	r.mu.Unlock()

	var out Outcome
	switch {
	case cancelled:
		if forced {
			r.marker("[!] Forcefully stopping the command runner thread.")
		}
		r.marker(fmt.Sprintf("[!] Task '%s' was interrupted by user.", r.job.Command))
		out = Outcome{Kind: Interrupted, ExitCode: stateExitCode(cmd)}
	case readErr != nil:
		r.marker(fmt.Sprintf("[X] An unexpected error occurred while running '%s': %v", r.job.Command, readErr))
		out = Outcome{Kind: RuntimeError, Err: readErr}
	case waitErr != nil && cmd.ProcessState == nil:
		r.marker(fmt.Sprintf("[X] An unexpected error occurred while running '%s': %v", r.job.Command, waitErr))
		out = Outcome{Kind: RuntimeError, Err: waitErr}
	default:
		code := stateExitCode(cmd)
		if code == 0 {
			r.marker(fmt.Sprintf("[✓] Task '%s' completed successfully. (Exit Code: 0)", r.job.Command))
			out = Outcome{Kind: Completed}
		} else {
			r.marker(fmt.Sprintf("[X] Task '%s' failed. (Exit Code: %d)", r.job.Command, code))
			out = Outcome{Kind: Failed, ExitCode: code}
		}
	}

	r.cleanup(cmd.Process.Pid)
	_ = pipe.Close()
	r.marker(separator)
	r.log.Debug("task finished", slog.String("outcome", out.String()))
	r.outcome <- out
}

// stopAfterReadError ends a task whose output can no longer be read. The child
// gets CleanupGrace to exit after the terminate signal before it is killed.
func (r *Runner) stopAfterReadError(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	r.log.Warn("lost task output, terminating task process group", slog.Int("pid", pid))
	if err := terminateGroup(pid); err != nil {
		r.log.Warn("failed to signal task process group", slog.Int("pid", pid), slog.Any("error", err))
	}
	timer := time.NewTimer(r.cfg.CleanupGrace)
	defer timer.Stop()
	select {
	case err := <-waited:
		return err
	case <-timer.C:
	}
	if err := killGroup(pid); err != nil {
		r.log.Warn("failed to kill task process group", slog.Int("pid", pid), slog.Any("error", err))
	}
	return <-waited
}

// forward copies lines from the pipe to the sink until EOF or cancellation.
func (r *Runner) forward(pipe io.Reader) error {
	reader := bufio.NewReader(pipe)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if r.isCancelled() {
				return nil
			}
			r.emit(linefilter.Clean(strings.TrimRight(line, "\r\n")), false)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			if r.isCancelled() {
				return nil
			}
			return fmt.Errorf("read task output: %w", err)
		}
		if r.isCancelled() {
			return nil
		}
	}
}

// cleanup makes sure nothing from the task's process group outlives it.
func (r *Runner) cleanup(pid int) {
	if !groupAlive(pid) {
		return
	}
	r.log.Debug("terminating leftover task processes", slog.Int("pid", pid))
	_ = terminateGroup(pid)
	deadline := time.Now().Add(r.cfg.CleanupGrace)
	for time.Now().Before(deadline) {
		if !groupAlive(pid) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := killGroup(pid); err != nil {
		r.log.Warn("failed to kill leftover task processes", slog.Int("pid", pid), slog.Any("error", err))
	}
}

func (r *Runner) finish(out Outcome) {
	r.mu.Lock()
	r.decided = true
	r.mu.Unlock()
	r.marker(separator)
	r.outcome <- out
	close(r.done)
}

func (r *Runner) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Runner) marker(text string) {
	r.emit(text, true)
}

func (r *Runner) emit(text string, marker bool) {
	r.sink(Line{
		TaskIndex: r.job.TaskIndex,
		TaskID:    r.job.TaskID,
		At:        time.Now(),
		Text:      text,
		Marker:    marker,
	})
}

func stateExitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return exitCode(cmd.ProcessState)
}

func firstWord(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}
