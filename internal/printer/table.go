package printer

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/slok/runq/internal/model"
)

// TablePrinter prints execution information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintHistory prints executions in a table format.
func (t *TablePrinter) PrintHistory(executions []model.Execution) error {
	if len(executions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tDURATION\tERROR")
	for _, e := range executions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Status,
			TimeAgo(e.CreatedAt),
			ExecutionDuration(e.StartedAt, e.FinishedAt),
			firstLine(e.Error),
		)
	}

	return nil
}

// PrintStatus prints detailed execution status.
func (t *TablePrinter) PrintStatus(info model.ExecutionStatusInfo) error {
	e := info.Execution

	fmt.Fprintf(t.writer, "ID:         %s\n", e.ID)
	fmt.Fprintf(t.writer, "Status:     %s\n", e.Status)

	if e.Options != nil {
		if len(e.Options.Only) > 0 {
			fmt.Fprintf(t.writer, "Only:       %s\n", strings.Join(e.Options.Only, ", "))
		}
		if e.Options.DryRun {
			fmt.Fprintf(t.writer, "Dry run:    yes\n")
		}
		if len(e.Options.Env) > 0 {
			fmt.Fprintf(t.writer, "Env:        %s\n", strings.Join(slices.Sorted(maps.Keys(e.Options.Env)), ", "))
		}
	}

	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(e.CreatedAt))
	if e.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(*e.StartedAt))
	}
	if e.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*e.FinishedAt))
	}
	fmt.Fprintf(t.writer, "Duration:   %s\n", ExecutionDuration(e.StartedAt, e.FinishedAt))

	if e.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", e.Error)
	}

	if info.Progress.Total == 0 {
		return nil
	}

	fmt.Fprintf(t.writer, "Progress:   %d/%d\n", info.Progress.Done, info.Progress.Total)
	fmt.Fprintln(t.writer)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tTASK\tSTATUS\tERROR")
	for _, tsk := range info.Tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", tsk.Sequence, tsk.Name, tsk.Status, firstLine(tsk.Error))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
