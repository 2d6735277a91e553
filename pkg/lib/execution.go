package lib

import (
	"context"
	"fmt"
	"io"

	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
)

// Output is the output stream of an execution.
type Output struct {
	ch *output.Channel
}

// Next blocks until the next output line is available and returns it.
//
// Once the execution has ended and every line has been read it returns io.EOF.
// If ctx is done first it returns the context error, and the remaining lines
// can still be read with another call.
func (o *Output) Next(ctx context.Context) (string, error) {
	return o.ch.ReadNext(ctx, true)
}

// Lines reads the output until the execution ends and returns every line.
func (o *Output) Lines(ctx context.Context) ([]string, error) {
	var lines []string
	err := o.ch.Drain(ctx, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	return lines, err
}

// WriteTo writes the output lines into w until the execution ends.
func (o *Output) WriteTo(ctx context.Context, w io.Writer) error {
	return o.ch.Drain(ctx, func(line string) error {
		_, err := fmt.Fprintln(w, line)
		return err
	})
}

// Execute requests an execution and returns its record and output.
//
// The execution is queued behind the ones already requested. If it has to wait,
// the first output line is a notice saying so. Nil opts uses the options in
// effect ([Config].Options).
func (c *Client) Execute(ctx context.Context, opts *RunOptions) (*Execution, *Output, error) {
	sink := output.NewChannel()
	e, err := c.request(ctx, opts, sink)
	if err != nil {
		return nil, nil, err
	}

	return e, &Output{ch: sink}, nil
}

// ExecuteDetached requests an execution without an output stream and returns
// its record as soon as it's queued. Use [Client.Status] to follow it.
func (c *Client) ExecuteDetached(ctx context.Context, opts *RunOptions) (*Execution, error) {
	return c.request(ctx, opts, nil)
}

func (c *Client) request(ctx context.Context, opts *RunOptions, sink *output.Channel) (*Execution, error) {
	e, err := c.execute.Run(ctx, execute.Request{
		Options: toInternalRunOptions(opts),
		Sink:    sink,
	})
	if err != nil {
		return nil, mapError(err)
	}

	res := fromInternalExecution(*e)
	return &res, nil
}

// History returns the executions, newest first.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]Execution, error) {
	req := history.Request{}
	if opts != nil {
		req.Limit = opts.Limit
		if opts.Status != nil {
			s := model.ExecutionStatus(*opts.Status)
			req.StatusFilter = &s
		}
	}

	es, err := c.history.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalExecutionList(es), nil
}

// Status returns an execution together with the progress of its tasks.
// Use [LatestExecution] as the ID to get the newest execution.
func (c *Client) Status(ctx context.Context, id string) (*ExecutionState, error) {
	info, err := c.status.Run(ctx, status.Request{ID: id})
	if err != nil {
		return nil, mapError(err)
	}

	st := fromInternalStatusInfo(*info)
	return &st, nil
}
