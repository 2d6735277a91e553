package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/printer"
)

func statusFixture() model.ExecutionStatusInfo {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	startedAt := createdAt.Add(5 * time.Second)
	finishedAt := startedAt.Add(2 * time.Minute)

	return model.ExecutionStatusInfo{
		Execution: model.Execution{
			ID:         "01JKABCDEFGHJKMNPQRSTVWXYZ",
			Status:     model.ExecutionStatusFailed,
			Options:    &model.RunOptions{Only: []string{"build", "test"}, DryRun: true, Env: map[string]string{"B": "2", "A": "1"}},
			Error:      "task \"test\" failed: exit status 1",
			CreatedAt:  createdAt,
			StartedAt:  &startedAt,
			FinishedAt: &finishedAt,
		},
		Progress: model.TaskProgress{Done: 1, Total: 2},
		Tasks: []model.Task{
			{Sequence: 1, Name: "build", Status: model.TaskStatusDone},
			{Sequence: 2, Name: "test", Status: model.TaskStatusFailed, Error: "exit status 1"},
		},
	}
}

func TestTablePrinterPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintStatus(statusFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID:         01JKABCDEFGHJKMNPQRSTVWXYZ")
	assert.Contains(t, out, "Status:     failed")
	assert.Contains(t, out, "Only:       build, test")
	assert.Contains(t, out, "Dry run:    yes")
	assert.Contains(t, out, "Env:        A, B")
	assert.Contains(t, out, "Started:    2026-01-30 10:00:05 UTC")
	assert.Contains(t, out, "Duration:   2m0s")
	assert.Contains(t, out, "Progress:   1/2")
	assert.Contains(t, out, "2  test   failed  exit status 1")
}

func TestTablePrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	info := statusFixture()
	queued := model.Execution{ID: "01JKABCDEFGHJKMNPQRSTVWXY0", Status: model.ExecutionStatusQueued, CreatedAt: time.Now().UTC()}
	err := p.PrintHistory([]model.Execution{queued, info.Execution})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "queued")
	assert.Contains(t, lines[1], " - ")
	assert.Contains(t, lines[2], "2m0s")
}

func TestTablePrinterPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintHistory(nil))
	assert.Empty(t, buf.String())
}

func TestJSONPrinterPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintStatus(statusFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"status": "failed"`)
	assert.Contains(t, out, `"dry_run": true`)
	assert.Contains(t, out, `"started_at": "2026-01-30T10:00:05Z"`)
	assert.Contains(t, out, `"done": 1`)
	assert.Contains(t, out, `"name": "test"`)
}

func TestJSONPrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintHistory([]model.Execution{})
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestJSONPrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message": "ok"`)
}
