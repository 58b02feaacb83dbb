package schemas

import (
	"time"

	z "github.com/Oudwins/zog"
)

type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "Pending"
	TaskStatusRunning     TaskStatus = "Running"
	TaskStatusCompleted   TaskStatus = "Completed"
	TaskStatusError       TaskStatus = "Error"
	TaskStatusInterrupted TaskStatus = "Interrupted"
)

var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusCompleted,
	TaskStatusError,
	TaskStatusInterrupted,
}

// IsTerminal reports whether no further automatic transition happens for the
// task within the current run.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusError, TaskStatusInterrupted:
		return true
	default:
		return false
	}
}

func (s TaskStatus) String() string {
	return string(s)
}

type Task struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Command     string     `json:"command"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

type LogLine struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

type TaskCreateRequest struct {
	Name        string `json:"name" zog:"name"`
	Command     string `json:"command" zog:"command"`
	Description string `json:"description" zog:"description"`
}

type TaskUpdateRequest struct {
	Name        string `json:"name" zog:"name"`
	Command     string `json:"command" zog:"command"`
	Description string `json:"description" zog:"description"`
}

var TaskCreateSchema = z.Struct(z.Shape{
	"Name":        z.String().Required(z.Message("name is required")).Trim().Min(1, z.Message("name is required")),
	"Command":     z.String().Required(z.Message("command is required")).Trim().Min(1, z.Message("command is required")),
	"Description": z.String().Optional().Trim(),
})

var TaskUpdateSchema = z.Struct(z.Shape{
	"Name":        z.String().Required(z.Message("name is required")).Trim().Min(1, z.Message("name is required")),
	"Command":     z.String().Required(z.Message("command is required")).Trim().Min(1, z.Message("command is required")),
	"Description": z.String().Optional().Trim(),
})

type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

type TaskLogsResponse struct {
	TaskID int64     `json:"taskId"`
	Lines  []LogLine `json:"lines"`
}
