package executions

import (
	"time"

	"github.com/slok/runq/internal/model"
)

type executionJSON struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Options    *model.RunOptions `json:"options,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

type taskJSON struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type statusJSON struct {
	executionJSON
	Progress struct {
		Done  int `json:"done"`
		Total int `json:"total"`
	} `json:"progress"`
	Tasks []taskJSON `json:"tasks"`
}

func toExecutionJSON(e model.Execution) executionJSON {
	return executionJSON{
		ID:         e.ID,
		Status:     string(e.Status),
		Options:    e.Options,
		Error:      e.Error,
		CreatedAt:  e.CreatedAt,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
	}
}

func toStatusJSON(info model.ExecutionStatusInfo) statusJSON {
	s := statusJSON{executionJSON: toExecutionJSON(info.Execution), Tasks: []taskJSON{}}
	s.Progress.Done = info.Progress.Done
	s.Progress.Total = info.Progress.Total
	for _, t := range info.Tasks {
		s.Tasks = append(s.Tasks, taskJSON{Name: t.Name, Status: string(t.Status), Error: t.Error})
	}

	return s
}
