package printer

import "github.com/slok/runq/internal/model"

// Printer knows how to print execution information in different formats.
type Printer interface {
	PrintHistory(executions []model.Execution) error
	PrintStatus(info model.ExecutionStatusInfo) error
	PrintMessage(msg string) error
}
