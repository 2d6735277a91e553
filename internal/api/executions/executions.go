package executions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/slok/runq/internal/api"
	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
)

// Output modes of a new execution.
const (
	// ModeStream streams the output in the response as NDJSON events.
	ModeStream = "stream"
	// ModeCapture keeps the output server side to be polled.
	ModeCapture = "capture"
	// ModeDetached discards the output.
	ModeDetached = "detached"
)

// ExecuteService requests executions.
type ExecuteService interface {
	Run(ctx context.Context, req execute.Request) (*model.Execution, error)
}

// HistoryService lists executions.
type HistoryService interface {
	Run(ctx context.Context, req history.Request) ([]model.Execution, error)
}

// StatusService gets the status of an execution.
type StatusService interface {
	Run(ctx context.Context, req status.Request) (*model.ExecutionStatusInfo, error)
}

// PluginConfig is the configuration for the executions plugin.
type PluginConfig struct {
	Execute ExecuteService
	History HistoryService
	Status  StatusService
	// PollTimeout is the max time an output long poll waits for a line.
	PollTimeout time.Duration
	Logger      log.Logger
}

func (c *PluginConfig) defaults() error {
	if c.Execute == nil {
		return fmt.Errorf("execute service is required")
	}
	if c.History == nil {
		return fmt.Errorf("history service is required")
	}
	if c.Status == nil {
		return fmt.Errorf("status service is required")
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Executions"})
	return nil
}

// Plugin is the HTTP API plugin to request and inspect executions.
type Plugin struct {
	execute     ExecuteService
	history     HistoryService
	status      StatusService
	pollTimeout time.Duration
	logger      log.Logger

	mu      sync.Mutex
	outputs map[string]*output.Channel
}

var _ api.Plugin = &Plugin{}

// NewPlugin returns a new executions plugin.
func NewPlugin(cfg PluginConfig) (*Plugin, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Plugin{
		execute:     cfg.Execute,
		history:     cfg.History,
		status:      cfg.Status,
		pollTimeout: cfg.PollTimeout,
		logger:      cfg.Logger,
		outputs:     map[string]*output.Channel{},
	}, nil
}

func (p *Plugin) Name() string { return "executions" }

func (p *Plugin) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix, p.handleCreate)
	mux.HandleFunc("GET "+prefix, p.handleList)
	mux.HandleFunc("GET "+prefix+"/{id}", p.handleGet)
	mux.HandleFunc("GET "+prefix+"/{id}/output", p.handleOutput)
}

type createRequest struct {
	Options *model.RunOptions `json:"options"`
	Mode    string            `json:"mode"`
}

type lineEvent struct {
	Line string `json:"line"`
}

type eofEvent struct {
	EOF bool `json:"eof"`
}

type outputResponse struct {
	Lines []string `json:"lines"`
	EOF   bool     `json:"eof"`
}

func (p *Plugin) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := createRequest{Mode: ModeStream}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.WriteError(w, fmt.Errorf("invalid request body: %s: %w", err, model.ErrNotValid))
		return
	}
	if req.Mode == "" {
		req.Mode = ModeStream
	}

	switch req.Mode {
	case ModeStream:
		p.stream(w, r, req.Options)
	case ModeCapture:
		ch := output.NewChannel()
		e, err := p.execute.Run(r.Context(), execute.Request{Options: req.Options, Sink: ch})
		if err != nil {
			api.WriteError(w, err)
			return
		}
		p.mu.Lock()
		p.outputs[e.ID] = ch
		p.mu.Unlock()
		api.WriteJSON(w, http.StatusAccepted, toExecutionJSON(*e))
	case ModeDetached:
		e, err := p.execute.Run(r.Context(), execute.Request{Options: req.Options})
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, toExecutionJSON(*e))
	default:
		api.WriteError(w, fmt.Errorf("unknown mode %q: %w", req.Mode, model.ErrNotValid))
	}
}

func (p *Plugin) stream(w http.ResponseWriter, r *http.Request, opts *model.RunOptions) {
	ch := output.NewChannel()
	e, err := p.execute.Run(r.Context(), execute.Request{Options: opts, Sink: ch})
	if err != nil {
		api.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Execution-Id", e.ID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	err = ch.Drain(r.Context(), func(line string) error {
		if err := enc.Encode(lineEvent{Line: line}); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil {
		// The execution keeps running, only the client is gone.
		p.logger.Debugf("stream of execution %s stopped: %s", e.ID, err)
		return
	}

	if err := enc.Encode(eofEvent{EOF: true}); err != nil {
		p.logger.Debugf("could not write end of stream of execution %s: %s", e.ID, err)
		return
	}
	_ = rc.Flush()
}

func (p *Plugin) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		var err error
		wait, err = strconv.ParseBool(v)
		if err != nil {
			api.WriteError(w, fmt.Errorf("invalid wait value %q: %w", v, model.ErrNotValid))
			return
		}
	}

	p.mu.Lock()
	ch, ok := p.outputs[id]
	p.mu.Unlock()
	if !ok {
		api.WriteError(w, fmt.Errorf("output of execution %s: %w", id, model.ErrNotFound))
		return
	}

	resp := outputResponse{Lines: []string{}}
	if wait {
		ctx, cancel := context.WithTimeout(r.Context(), p.pollTimeout)
		line, err := ch.ReadNext(ctx, true)
		cancel()

		switch {
		case err == nil:
			resp.Lines = append(resp.Lines, line)
		case errors.Is(err, io.EOF):
			resp.EOF = true
		case r.Context().Err() != nil:
			return
		}
	}

	for !resp.EOF {
		line, err := ch.ReadNext(r.Context(), false)
		if err != nil {
			if errors.Is(err, io.EOF) {
				resp.EOF = true
			}
			break
		}
		resp.Lines = append(resp.Lines, line)
	}

	if resp.EOF {
		p.mu.Lock()
		delete(p.outputs, id)
		p.mu.Unlock()
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

func (p *Plugin) handleList(w http.ResponseWriter, r *http.Request) {
	req := history.Request{}

	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		s := model.ExecutionStatus(v)
		req.StatusFilter = &s
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			api.WriteError(w, fmt.Errorf("invalid limit %q: %w", v, model.ErrNotValid))
			return
		}
		req.Limit = limit
	}

	executions, err := p.history.Run(r.Context(), req)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	resp := make([]executionJSON, 0, len(executions))
	for _, e := range executions {
		resp = append(resp, toExecutionJSON(e))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (p *Plugin) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := p.status.Run(r.Context(), status.Request{ID: r.PathValue("id")})
	if err != nil {
		api.WriteError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, toStatusJSON(*info))
}
