package cliutil

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
)

const timeLayout = "2006-01-02 15:04:05"

func PrintTaskCreated(w io.Writer, task *schemas.Task) {
	fmt.Fprintf(w, "task: %d\nname: %s\ncommand: %s\n", task.ID, task.Name, task.Command)
}

func PrintTasks(w io.Writer, tasks []schemas.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tNAME\tCOMMAND\tSTARTED\tENDED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", task.ID, task.Status, task.Name, task.Command, FormatTime(task.StartTime), FormatTime(task.EndTime))
	}
	_ = tw.Flush()
}

func PrintSnapshot(w io.Writer, snapshot *schemas.RunSnapshot) {
	fmt.Fprintf(w, "state: %s\n", snapshot.State)
	if snapshot.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", snapshot.RunID)
	}
	if snapshot.State.Active() && snapshot.Position >= 0 && snapshot.Position < len(snapshot.Tasks) {
		current := snapshot.Tasks[snapshot.Position]
		fmt.Fprintf(w, "current: %d/%d %s\n", snapshot.Position+1, len(snapshot.Tasks), current.Name)
	}
	if snapshot.LastFinish != "" {
		fmt.Fprintf(w, "finished: %s\n", snapshot.LastFinish)
	}
	PrintTasks(w, snapshot.Tasks)
}

func PrintLogs(w io.Writer, logs *schemas.TaskLogsResponse) {
	if len(logs.Lines) == 0 {
		fmt.Fprintf(w, "No output recorded for task %d.\n", logs.TaskID)
		return
	}
	for _, line := range logs.Lines {
		fmt.Fprintf(w, "%s  %s\n", line.Timestamp.Local().Format(timeLayout), line.Text)
	}
}

// FormatEvent renders an event as a line of live output. Status events carry
// no text of their own and are skipped.
func FormatEvent(event schemas.Event) (string, bool) {
	switch event.Type {
	case schemas.EventOutput, schemas.EventNotice, schemas.EventRunStarted, schemas.EventRunFinished:
		return event.Text, true
	default:
		return "", false
	}
}

func PrintEvents(w io.Writer, events []schemas.Event) {
	for _, event := range events {
		if text, ok := FormatEvent(event); ok {
			fmt.Fprintln(w, text)
		}
	}
}

func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// Truncate shortens s to at most width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	runes := []rune(strings.TrimSpace(s))
	if width <= 3 || len(runes) <= width {
		return string(runes)
	}
	return string(runes[:width-3]) + "..."
}
