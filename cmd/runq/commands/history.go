package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	limit        int
	format       string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the executions, newest first.")
	c.Cmd.Flag("status", "Filter by status (queued, running, succeeded, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Max number of executions, 0 lists all.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var statusFilter *model.ExecutionStatus
	if c.statusFilter != "" {
		status := model.ExecutionStatus(strings.ToLower(c.statusFilter))
		if !status.Valid() {
			return fmt.Errorf("invalid status filter: %s (must be: queued, running, succeeded, failed)", c.statusFilter)
		}
		statusFilter = &status
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	executions, err := svc.Run(ctx, history.Request{
		StatusFilter: statusFilter,
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list executions: %w", err)
	}

	p, err := newPrinter(c.format, c.rootCmd.Stdout)
	if err != nil {
		return err
	}

	if err := p.PrintHistory(executions); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
