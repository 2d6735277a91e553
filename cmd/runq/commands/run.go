package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	eofMarker bool
	run       *runFlags
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the tasks once and print their output.")
	c.Cmd.Flag("eof-marker", "Print "+output.EndOfStreamMarker+" after the last output line.").BoolVar(&c.eofMarker)
	c.run = registerRunFlags(c.Cmd)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	opts, err := c.run.options()
	if err != nil {
		return err
	}

	tasks, err := c.run.loadTasks(ctx)
	if err != nil {
		return err
	}

	// Execution log records reach stdout through the sink.
	b, err := newBackend(ctx, c.rootCmd, backendConfig{Tasks: tasks, ExecutionLogger: log.Noop})
	if err != nil {
		return err
	}
	defer b.Close()

	sink := output.NewChannel()
	e, err := b.execute.Run(ctx, execute.Request{Options: opts, Sink: sink})
	if err != nil {
		return fmt.Errorf("could not request execution: %w", err)
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

	// Execution output, ends the group once the stream ends.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				if c.eofMarker {
					return sink.Copy(ctx, c.rootCmd.Stdout)
				}
				return sink.Drain(ctx, func(line string) error {
					_, err := fmt.Fprintln(c.rootCmd.Stdout, line)
					return err
				})
			},
			func(_ error) { cancel() },
		)
	}

	if err := g.Run(); err != nil {
		return fmt.Errorf("execution %s output interrupted: %w", e.ID, err)
	}

	// The recorder finishes the record before the stream ends.
	got, err := b.repo.GetExecution(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}
	if got.Status != model.ExecutionStatusSucceeded {
		return fmt.Errorf("execution %s %s: %s", got.ID, got.Status, got.Error)
	}

	return nil
}
