package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/printer"
)

func runFixture() model.Run {
	startedAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	finishedAt := startedAt.Add(4200 * time.Millisecond)
	return model.Run{
		ID:           "01jq4ypd1g0000000000000000",
		RunnableName: "build",
		Command:      []string{"make", "build"},
		Engine:       model.EngineProcess,
		Status:       model.RunStatusFailed,
		ExitCode:     2,
		Output:       "compiling\nerror: boom",
		StartedAt:    startedAt,
		FinishedAt:   &finishedAt,
	}
}

func entriesFixture() []catalog.Entry {
	return []catalog.Entry{
		{Runnable: model.Runnable{Name: "build", Label: "Build it", Command: "make", Args: []string{"build"}, CaptureOutput: true}},
		{Runnable: model.Runnable{Name: "it", Command: "go", Args: []string{"test"}, Docker: &model.DockerConfig{Image: "golang:1.25"}}, Scheduled: true},
	}
}

func TestTablePrinterPrintRunnables(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunnables(entriesFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "LABEL", "ENGINE", "COMMAND", "STATE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"build", "Build", "it", "process", "make", "build", "idle"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"it", "-", "docker", "go", "test", "running"}, strings.Fields(lines[2]))
}

func TestTablePrinterPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	running := runFixture()
	running.ID = "other"
	running.Status = model.RunStatusRunning
	running.FinishedAt = nil

	err := p.PrintRuns([]model.Run{runFixture(), running})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "RUNNABLE", "STATUS", "EXIT", "DURATION", "OUTPUT", "STARTED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"01jq4ypd1g0000000000000000", "build", "failed", "2", "4.2s", "2", "lines"}, strings.Fields(lines[1])[:7])
	assert.Equal(t, []string{"other", "build", "running", "-"}, strings.Fields(lines[2])[:4])
}

func TestTablePrinterPrintRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&buf).PrintRuns(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRun(runFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Runnable:   build")
	assert.Contains(t, out, "Command:    make build")
	assert.Contains(t, out, "Exit code:  2")
	assert.Contains(t, out, "Finished:   2026-01-30 10:00:04 UTC")
	assert.Contains(t, out, "Duration:   4.2s")
	assert.True(t, strings.HasSuffix(out, "\nOutput:\ncompiling\nerror: boom\n"))
}

func TestJSONPrinterPrintRunnables(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintRunnables(entriesFixture())
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "build", got[0]["name"])
	assert.Equal(t, "process", got[0]["engine"])
	assert.Equal(t, true, got[0]["capture_output"])
	assert.Equal(t, "golang:1.25", got[1]["image"])
	assert.Equal(t, true, got[1]["scheduled"])
}

func TestJSONPrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintRun(runFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"status": "failed"`)
	assert.Contains(t, out, `"exit_code": 2`)
	assert.Contains(t, out, `"duration_ms": 4200`)
	assert.Contains(t, out, `"output": "compiling\nerror: boom"`)
}

func TestJSONPrinterPrintRunsWithoutExitCode(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	run := runFixture()
	run.Status = model.RunStatusTerminated
	err := p.PrintRuns([]model.Run{run})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"exit_code": null`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
