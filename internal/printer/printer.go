package printer

import (
	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/model"
)

// Printer knows how to print runnables and runs in different formats.
type Printer interface {
	PrintRunnables(entries []catalog.Entry) error
	PrintRuns(runs []model.Run) error
	PrintRun(run model.Run) error
	PrintMessage(msg string) error
}
