// Package report renders the stored tasks and their output as a standalone
// HTML page.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/Oudwins/shellrunner/internals/schemas"
)

//go:embed templates/report.html.tmpl
var templatesFS embed.FS

var page = template.Must(template.ParseFS(templatesFS, "templates/report.html.tmpl"))

const displayLayout = "2006-01-02 15:04:05"

type Source interface {
	ListTasks(ctx context.Context) ([]schemas.Task, error)
	ListLogs(ctx context.Context, taskID int64) ([]schemas.LogLine, error)
}

type pageData struct {
	GeneratedAt string
	Tasks       []taskData
}

type taskData struct {
	Name        string
	Command     string
	Description string
	Status      schemas.TaskStatus
	StartTime   string
	EndTime     string
	Lines       []string
}

// FileName is the report name for a given generation time.
func FileName(now time.Time) string {
	return now.Format("shellrunner_report_20060102_150405") + ".html"
}

// Generate writes a report of everything in source to dir and returns the
// path of the new file.
func Generate(ctx context.Context, source Source, dir string, now time.Time) (string, error) {
	tasks, err := source.ListTasks(ctx)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}

	data := pageData{GeneratedAt: now.Format(displayLayout)}
	for _, task := range tasks {
		logs, err := source.ListLogs(ctx, task.ID)
		if err != nil {
			return "", fmt.Errorf("list logs for task %d: %w", task.ID, err)
		}
		item := taskData{
			Name:        task.Name,
			Command:     task.Command,
			Description: task.Description,
			Status:      task.Status,
			StartTime:   formatOptional(task.StartTime),
			EndTime:     formatOptional(task.EndTime),
			Lines:       make([]string, 0, len(logs)),
		}
		for _, line := range logs {
			item.Lines = append(item.Lines, line.Timestamp.Local().Format(displayLayout)+" - "+line.Text)
		}
		data.Tasks = append(data.Tasks, item)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	return writeUnique(dir, FileName(now), buf.Bytes())
}

// writeUnique never overwrites an earlier report generated within the same
// second.
func writeUnique(dir, name string, content []byte) (string, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create report: %w", err)
		}
		if _, err := f.Write(content); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(displayLayout)
}
