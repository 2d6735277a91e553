package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/storage/sqlite"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Get detailed status of an execution.")
	c.Cmd.Arg("id", "Execution ID, "+status.LatestID+" for the newest one.").Default(status.LatestID).StringVar(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	taskRepo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{
		DB:     repo.DB(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}

	svc, err := status.NewService(status.ServiceConfig{
		Repository:     repo,
		TaskRepository: taskRepo,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	info, err := svc.Run(ctx, status.Request{ID: c.id})
	if err != nil {
		return fmt.Errorf("could not get execution status: %w", err)
	}

	p, err := newPrinter(c.format, c.rootCmd.Stdout)
	if err != nil {
		return err
	}

	if err := p.PrintStatus(*info); err != nil {
		return fmt.Errorf("could not print status: %w", err)
	}

	return nil
}
