package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/runq/internal/api"
	"github.com/slok/runq/internal/api/executions"
	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/conventions"
)

// interruptedReason is the error of the executions that a previous server didn't finish.
const interruptedReason = "interrupted: the server stopped before the execution finished"

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr string
	run        *runFlags
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the execution worker and the HTTP API. Run flags set the options in effect.")
	c.Cmd.Flag("listen", "HTTP API listen address.").Default(conventions.DefaultListenAddr).StringVar(&c.listenAddr)
	c.run = registerRunFlags(c.Cmd)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	opts, err := c.run.options()
	if err != nil {
		return err
	}

	tasks, err := c.run.loadTasks(ctx)
	if err != nil {
		return err
	}

	b, err := newBackend(ctx, c.rootCmd, backendConfig{Tasks: tasks, Options: opts})
	if err != nil {
		return err
	}
	defer b.Close()

	// Queued executions are not persisted, nothing will run the ones left by a previous server.
	n, err := b.repo.InterruptExecutions(ctx, interruptedReason)
	if err != nil {
		return fmt.Errorf("could not interrupt stale executions: %w", err)
	}
	if n > 0 {
		logger.Warningf("%d unfinished executions from a previous run marked as failed", n)
	}

	historySvc, err := history.NewService(history.ServiceConfig{Repository: b.repo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create history service: %w", err)
	}

	statusSvc, err := status.NewService(status.ServiceConfig{Repository: b.repo, TaskRepository: b.taskRepo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create status service: %w", err)
	}

	plugin, err := executions.NewPlugin(executions.PluginConfig{
		Execute: b.execute,
		History: historySvc,
		Status:  statusSvc,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create executions plugin: %w", err)
	}

	registry := api.NewRegistry(logger)
	err = registry.Register(plugin, api.RegisterOptions{Menu: true, MenuTitle: "Executions", Home: true})
	if err != nil {
		return fmt.Errorf("could not register executions plugin: %w", err)
	}

	server, err := api.NewServer(api.ServerConfig{
		ListenAddr: c.listenAddr,
		Registry:   registry,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	var g run.Group

	// Worker.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return b.worker.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	// HTTP API.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return server.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	return g.Run()
}
