package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/model"
)

// TablePrinter prints runnables and runs in a table format.
type TablePrinter struct {
	writer  io.Writer
	timeNow func() time.Time
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, timeNow: time.Now}
}

// PrintRunnables prints the runnables in a table format.
func (t *TablePrinter) PrintRunnables(entries []catalog.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tLABEL\tENGINE\tCOMMAND\tSTATE")
	for _, e := range entries {
		state := "idle"
		if e.Scheduled {
			state = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Runnable.Name,
			orDash(e.Runnable.Label),
			e.Runnable.Engine(),
			strings.Join(e.Runnable.CommandLine(), " "),
			state,
		)
	}

	return nil
}

// PrintRuns prints the runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tRUNNABLE\tSTATUS\tEXIT\tDURATION\tOUTPUT\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.RunnableName,
			r.Status,
			exitCode(r),
			FormatDuration(r.Duration(t.timeNow())),
			FormatOutputSize(r.Output),
			TimeAgo(r.StartedAt, t.timeNow()),
		)
	}

	return nil
}

// PrintRun prints the detailed state of a run with its output.
func (t *TablePrinter) PrintRun(run model.Run) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", run.ID)
	fmt.Fprintf(t.writer, "Runnable:   %s\n", run.RunnableName)
	fmt.Fprintf(t.writer, "Command:    %s\n", strings.Join(run.Command, " "))
	fmt.Fprintf(t.writer, "Engine:     %s\n", run.Engine)
	fmt.Fprintf(t.writer, "Status:     %s\n", run.Status)
	fmt.Fprintf(t.writer, "Exit code:  %s\n", exitCode(run))

	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", run.Error)
	}

	fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(run.StartedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*run.FinishedAt))
	}
	fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(run.Duration(t.timeNow())))

	if run.Output != "" {
		fmt.Fprintf(t.writer, "\nOutput:\n%s", run.Output)
		if !strings.HasSuffix(run.Output, "\n") {
			fmt.Fprintln(t.writer)
		}
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

// exitCode only has meaning for runs that ran to completion.
func exitCode(r model.Run) string {
	switch r.Status {
	case model.RunStatusSucceeded, model.RunStatusFailed:
		if r.ExitCode < 0 {
			return "signal"
		}
		return fmt.Sprintf("%d", r.ExitCode)
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
