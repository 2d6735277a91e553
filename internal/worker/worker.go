package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/runq/internal/log"
	loglogrus "github.com/slok/runq/internal/log/logrus"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
)

// QueuedNotice is written to the sink of a request that has to wait for other executions.
const QueuedNotice = "There is already an execution running. This execution will start when the previous completes."

// StoppedNotice is written to the sink of a waiting execution discarded because the worker stopped.
const StoppedNotice = "The worker stopped before this execution started."

// Request is one requested execution. It must not be changed after being enqueued.
type Request struct {
	// ID of the execution, if empty one is generated on enqueue.
	ID string
	// Options override the options in effect for this execution only, nil keeps them.
	Options *model.RunOptions
	// Sink receives the execution output and log records, nil doesn't redirect anything.
	// The worker closes it when the execution ends.
	Sink *output.Channel
}

// WorkerConfig is the configuration for the worker.
type WorkerConfig struct {
	Executor Executor
	// Options are the options in effect when a request doesn't bring its own.
	Options *model.RunOptions
	// Stdout and Stderr are used when a request doesn't have a sink.
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
	// ExecutionLogger is the logger in effect for executions. Log records of a
	// request with a sink go to it and to the sink. Defaults to Logger.
	ExecutionLogger log.Logger
	// SinkLogger returns the logger used to write log records into a request sink.
	SinkLogger func(w io.Writer) log.Logger
}

func (c *WorkerConfig) defaults() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Stdout == nil {
		c.Stdout = io.Discard
	}
	if c.Stderr == nil {
		c.Stderr = io.Discard
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.ExecutionLogger == nil {
		c.ExecutionLogger = c.Logger
	}
	if c.SinkLogger == nil {
		c.SinkLogger = func(w io.Writer) log.Logger { return loglogrus.NewWriter(w, false) }
	}
	return nil
}

// Worker runs requested executions one at a time, in the order they were enqueued.
//
// Each execution gets the worker state overridden with the request options and
// sink, once finished the previous state is restored, also on errors and panics.
type Worker struct {
	executor   Executor
	sinkLogger func(w io.Writer) log.Logger
	logger     log.Logger
	running    atomic.Bool

	stateMu sync.Mutex
	state   State

	mu       sync.Mutex
	queue    []Request
	inFlight bool
	wakeup   chan struct{}
}

// NewWorker returns a new worker, it doesn't process anything until Run is called.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		executor:   cfg.Executor,
		sinkLogger: cfg.SinkLogger,
		logger:     cfg.Logger.WithValues(log.Kv{"svc": "worker.Worker"}),
		state: State{
			Options: cfg.Options.Clone(),
			Stdout:  cfg.Stdout,
			Stderr:  cfg.Stderr,
			Logger:  cfg.ExecutionLogger,
		},
		wakeup: make(chan struct{}, 1),
	}, nil
}

// Enqueue adds a request at the end of the queue and returns its ID. It never blocks.
//
// If there are executions running or waiting, the request sink receives a notice
// before anything else.
func (w *Worker) Enqueue(req Request) string {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	w.mu.Lock()
	busy := w.inFlight || len(w.queue) > 0
	if busy && req.Sink != nil {
		if _, err := req.Sink.WriteString(QueuedNotice); err != nil {
			w.logger.Debugf("could not write queued notice on %s: %s", req.ID, err)
		}
	}
	w.queue = append(w.queue, req)
	pending := len(w.queue)
	w.mu.Unlock()

	select {
	case w.wakeup <- struct{}{}:
	default:
	}

	w.logger.Debugf("Execution %s enqueued (%d waiting)", req.ID, pending)
	return req.ID
}

// Pending returns the number of executions waiting or running.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.queue)
	if w.inFlight {
		n++
	}
	return n
}

// State returns a copy of the state currently in effect.
func (w *Worker) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	st := w.state
	st.Options = st.Options.Clone()
	return st
}

// Run processes the queued requests until the context is cancelled. Cancelling
// doesn't stop an execution in progress, Run returns once it has finished.
//
// The requests still waiting when Run returns are discarded without running them,
// their sinks get StoppedNotice and are closed.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("worker already running")
	}
	defer w.running.Store(false)

	w.logger.Infof("Worker started")
	for {
		req, ok := w.next(ctx)
		if !ok {
			w.logger.Infof("Worker stopped")
			return nil
		}

		w.process(context.WithoutCancel(ctx), req)

		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}
}

// next blocks until there is a request to process or the context is done.
func (w *Worker) next(ctx context.Context) (Request, bool) {
	for {
		if ctx.Err() != nil {
			w.discardQueue()
			return Request{}, false
		}

		w.mu.Lock()
		if len(w.queue) > 0 {
			req := w.queue[0]
			w.queue[0] = Request{}
			w.queue = w.queue[1:]
			w.inFlight = true
			w.mu.Unlock()
			return req, true
		}
		w.mu.Unlock()

		select {
		case <-w.wakeup:
		case <-ctx.Done():
		}
	}
}

// discardQueue empties the queue ending the output stream of every discarded request.
func (w *Worker) discardQueue() {
	w.mu.Lock()
	queue := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, req := range queue {
		w.logger.Warningf("Execution %s discarded, the worker stopped before running it", req.ID)
		if req.Sink == nil {
			continue
		}

		if _, err := req.Sink.WriteString(StoppedNotice); err != nil {
			w.logger.Debugf("could not write stopped notice on %s: %s", req.ID, err)
		}
		if err := req.Sink.Close(); err != nil {
			w.logger.Debugf("could not close execution sink: %s", err)
		}
	}
}

func (w *Worker) process(ctx context.Context, req Request) {
	logger := w.logger.WithValues(log.Kv{"execution-id": req.ID})
	logger.Infof("Execution started")
	start := time.Now()

	err := w.execute(ctx, req)
	if err != nil {
		logger.Warningf("Execution failed after %s: %s", time.Since(start), err)
		return
	}

	logger.Infof("Execution finished in %s", time.Since(start))
}

func (w *Worker) execute(ctx context.Context, req Request) error {
	defer w.setExecutionID(req.ID)()

	if req.Options != nil {
		defer w.overrideOptions(req.Options.Clone())()
	}

	if req.Sink != nil {
		defer w.redirect(req.Sink)()
	}

	st := w.State()
	err := w.safeExecute(ctx, &st)
	if err != nil {
		// Errors must reach the execution output before the stream ends.
		st.Logger.Errorf("Execution failed: %s", err)
	}

	return err
}

func (w *Worker) safeExecute(ctx context.Context, st *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution panicked: %v", r)
		}
	}()

	return w.executor.Execute(ctx, st)
}

// setExecutionID sets the running execution ID, the returned function restores the previous one.
func (w *Worker) setExecutionID(id string) (restore func()) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	prev := w.state.ExecutionID
	w.state.ExecutionID = id

	return func() {
		w.stateMu.Lock()
		defer w.stateMu.Unlock()
		w.state.ExecutionID = prev
	}
}

// overrideOptions installs the options, the returned function restores the previous ones.
func (w *Worker) overrideOptions(opts *model.RunOptions) (restore func()) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	prev := w.state.Options
	w.state.Options = opts

	return func() {
		w.stateMu.Lock()
		defer w.stateMu.Unlock()
		w.state.Options = prev
	}
}

// redirect sends stdout, stderr and log records to the sink. The returned function
// ends the sink stream and restores the previous writers and logger.
func (w *Worker) redirect(sink *output.Channel) (restore func()) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	prevStdout, prevStderr, prevLogger := w.state.Stdout, w.state.Stderr, w.state.Logger
	w.state.Stdout = sink
	w.state.Stderr = sink
	w.state.Logger = log.Multi(prevLogger, w.sinkLogger(sink))

	return func() {
		if err := sink.Close(); err != nil {
			w.logger.Debugf("could not close execution sink: %s", err)
		}

		w.stateMu.Lock()
		defer w.stateMu.Unlock()
		w.state.Stdout = prevStdout
		w.state.Stderr = prevStderr
		w.state.Logger = prevLogger
	}
}
