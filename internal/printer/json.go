package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/model"
)

// JSONPrinter prints runnables and runs in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// runnableItem represents a runnable in the list output.
type runnableItem struct {
	Name          string            `json:"name"`
	Label         string            `json:"label,omitempty"`
	Engine        string            `json:"engine"`
	Command       []string          `json:"command"`
	Cwd           string            `json:"cwd,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Image         string            `json:"image,omitempty"`
	CaptureOutput bool              `json:"capture_output"`
	Scheduled     bool              `json:"scheduled"`
}

// runItem represents a run in the list output (subset of fields).
type runItem struct {
	ID           string     `json:"id"`
	RunnableName string     `json:"runnable"`
	Status       string     `json:"status"`
	ExitCode     *int       `json:"exit_code"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// runOutput represents the full run output.
type runOutput struct {
	runItem
	Command    []string `json:"command"`
	Engine     string   `json:"engine"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Output     string   `json:"output"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintRunnables prints the runnables in JSON format.
func (j *JSONPrinter) PrintRunnables(entries []catalog.Entry) error {
	items := make([]runnableItem, len(entries))
	for i, e := range entries {
		items[i] = runnableItem{
			Name:          e.Runnable.Name,
			Label:         e.Runnable.Label,
			Engine:        string(e.Runnable.Engine()),
			Command:       e.Runnable.CommandLine(),
			Cwd:           e.Runnable.Cwd,
			Env:           e.Runnable.Env,
			CaptureOutput: e.Runnable.CaptureOutput,
			Scheduled:     e.Scheduled,
		}
		if e.Runnable.Docker != nil {
			items[i].Image = e.Runnable.Docker.Image
		}
	}

	return j.encode(items)
}

// PrintRuns prints the runs in JSON format with a subset of fields.
func (j *JSONPrinter) PrintRuns(runs []model.Run) error {
	items := make([]runItem, len(runs))
	for i, r := range runs {
		items[i] = newRunItem(r)
	}

	return j.encode(items)
}

// PrintRun prints the detailed state of a run in JSON format.
func (j *JSONPrinter) PrintRun(run model.Run) error {
	return j.encode(runOutput{
		runItem:    newRunItem(run),
		Command:    run.Command,
		Engine:     string(run.Engine),
		Error:      run.Error,
		DurationMS: run.Duration(time.Now()).Milliseconds(),
		Output:     run.Output,
	})
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunItem(r model.Run) runItem {
	item := runItem{
		ID:           r.ID,
		RunnableName: r.RunnableName,
		Status:       string(r.Status),
		StartedAt:    r.StartedAt.UTC(),
	}

	if r.Status == model.RunStatusSucceeded || r.Status == model.RunStatusFailed {
		code := r.ExitCode
		item.ExitCode = &code
	}
	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		item.FinishedAt = &utcTime
	}

	return item
}
