package schemas

import "time"

type RunState string

const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateStopping RunState = "stopping"
	RunStateFinished RunState = "finished"
)

// Active reports whether a task of the run may still be executing.
func (s RunState) Active() bool {
	return s == RunStateRunning || s == RunStateStopping
}

type FinishReason string

const (
	FinishReasonAllCompleted FinishReason = "all_completed"
	FinishReasonInterrupted  FinishReason = "interrupted"
)

type EventType string

const (
	EventOutput      EventType = "output"
	EventStatus      EventType = "status"
	EventRunStarted  EventType = "run_started"
	EventRunFinished EventType = "run_finished"
	EventNotice      EventType = "notice"
)

// Event is what the engine tells its observers. Seq is assigned by the
// transcript buffer, not by the engine.
type Event struct {
	Seq       uint64       `json:"seq"`
	Type      EventType    `json:"type"`
	At        time.Time    `json:"at"`
	RunID     string       `json:"runId,omitempty"`
	TaskIndex int          `json:"taskIndex"`
	TaskID    int64        `json:"taskId,omitempty"`
	Text      string       `json:"text,omitempty"`
	Marker    bool         `json:"marker,omitempty"`
	Status    TaskStatus   `json:"status,omitempty"`
	Reason    FinishReason `json:"reason,omitempty"`
}

type RunSnapshot struct {
	State      RunState     `json:"state"`
	RunID      string       `json:"runId,omitempty"`
	Position   int          `json:"position"`
	LastFinish FinishReason `json:"lastFinish,omitempty"`
	Tasks      []Task       `json:"tasks"`
}

type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

type ReportResponse struct {
	Path string `json:"path"`
}

type RunStartResponse struct {
	RunID string `json:"runId"`
}
