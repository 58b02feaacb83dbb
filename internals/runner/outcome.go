package runner

import (
	"fmt"
	"time"
)

type OutcomeKind int

const (
	Completed OutcomeKind = iota
	Failed
	Interrupted
	LaunchError
	RuntimeError
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Interrupted:
		return "interrupted"
	case LaunchError:
		return "launch_error"
	case RuntimeError:
		return "runtime_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the terminal result of one task. ExitCode is only meaningful for
// Completed and Failed; Err carries the reason for LaunchError and
// RuntimeError.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int
	Err      error
}

func (o Outcome) String() string {
	switch o.Kind {
	case Completed, Failed:
		return fmt.Sprintf("%s (exit code %d)", o.Kind, o.ExitCode)
	case LaunchError, RuntimeError:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Err)
		}
	}
	return o.Kind.String()
}

type Job struct {
	TaskIndex int
	TaskID    int64
	Command   string
}

// Line is one unit of task output. Marker lines are produced by the runner
// itself rather than read from the child.
type Line struct {
	TaskIndex int
	TaskID    int64
	At        time.Time
	Text      string
	Marker    bool
}

// Sink receives every line a runner emits, in order. It is called from the
// runner's own goroutine.
type Sink func(Line)
