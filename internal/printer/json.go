package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/runq/internal/model"
)

// JSONPrinter prints execution information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// executionOutput represents an execution in the output.
type executionOutput struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Options    *model.RunOptions `json:"options,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at"`
}

// statusOutput represents the full execution status output.
type statusOutput struct {
	executionOutput
	Progress progressOutput `json:"progress"`
	Tasks    []taskOutput   `json:"tasks"`
}

type progressOutput struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type taskOutput struct {
	Sequence int    `json:"sequence"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintHistory prints executions in JSON format.
func (j *JSONPrinter) PrintHistory(executions []model.Execution) error {
	items := make([]executionOutput, len(executions))
	for i, e := range executions {
		items[i] = toExecutionOutput(e)
	}

	return j.encode(items)
}

// PrintStatus prints detailed execution status in JSON format.
func (j *JSONPrinter) PrintStatus(info model.ExecutionStatusInfo) error {
	output := statusOutput{
		executionOutput: toExecutionOutput(info.Execution),
		Progress:        progressOutput{Done: info.Progress.Done, Total: info.Progress.Total},
		Tasks:           make([]taskOutput, 0, len(info.Tasks)),
	}

	for _, t := range info.Tasks {
		output.Tasks = append(output.Tasks, taskOutput{
			Sequence: t.Sequence,
			Name:     t.Name,
			Status:   string(t.Status),
			Error:    t.Error,
		})
	}

	return j.encode(output)
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

func toExecutionOutput(e model.Execution) executionOutput {
	return executionOutput{
		ID:         e.ID,
		Status:     string(e.Status),
		Options:    e.Options,
		Error:      e.Error,
		CreatedAt:  e.CreatedAt.UTC(),
		StartedAt:  utcOrNil(e.StartedAt),
		FinishedAt: utcOrNil(e.FinishedAt),
	}
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
