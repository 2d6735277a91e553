package executions_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/api"
	"github.com/slok/runq/internal/api/executions"
	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/storage/memory"
	"github.com/slok/runq/internal/worker"
)

type testServer struct {
	url     string
	release chan struct{}
}

// newTestServer runs the complete stack. Executions write three lines, the ones
// with the BLOCK env var wait until release is closed, the ones with FAIL fail.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require := require.New(t)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	release := make(chan struct{})
	exec := worker.ExecutorFunc(func(ctx context.Context, st *worker.State) error {
		if st.Options != nil && st.Options.Env["BLOCK"] != "" {
			<-release
		}
		for _, l := range []string{"hello", "EOF", "bye"} {
			if _, err := io.WriteString(st.Stdout, l); err != nil {
				return err
			}
		}
		if st.Options != nil && st.Options.Env["FAIL"] != "" {
			return fmt.Errorf("failed on purpose")
		}
		return nil
	})

	recorder, err := execute.NewRecorder(execute.RecorderConfig{Executor: exec, Repository: repo})
	require.NoError(err)

	w, err := worker.NewWorker(worker.WorkerConfig{
		Executor:   recorder,
		SinkLogger: func(io.Writer) log.Logger { return log.Noop },
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	executeSvc, err := execute.NewService(execute.ServiceConfig{Repository: repo, Worker: w})
	require.NoError(err)
	historySvc, err := history.NewService(history.ServiceConfig{Repository: repo})
	require.NoError(err)
	statusSvc, err := status.NewService(status.ServiceConfig{Repository: repo, TaskRepository: repo})
	require.NoError(err)

	plugin, err := executions.NewPlugin(executions.PluginConfig{
		Execute:     executeSvc,
		History:     historySvc,
		Status:      statusSvc,
		PollTimeout: 100 * time.Millisecond,
	})
	require.NoError(err)

	registry := api.NewRegistry(log.Noop)
	require.NoError(registry.Register(plugin, api.RegisterOptions{Home: true, Menu: true}))

	srv := httptest.NewServer(registry.Handler())

	ts := &testServer{url: srv.URL, release: release}
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
		srv.Close()
		cancel()
		<-done
	})

	return ts
}

func (s *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.url+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type execution struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type outputResp struct {
	Lines []string `json:"lines"`
	EOF   bool     `json:"eof"`
}

func (s *testServer) waitFinished(t *testing.T, id string) execution {
	t.Helper()

	var e execution
	require.Eventually(t, func() bool {
		resp := s.do(t, http.MethodGet, "/executions/"+id, "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		e = decode[execution](t, resp)
		return e.Status == "succeeded" || e.Status == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	return e
}

func TestCreateStream(t *testing.T) {
	tests := map[string]struct {
		body      string
		expStatus string
	}{
		"Streaming with an empty body should stream the output.": {
			body:      "",
			expStatus: "succeeded",
		},

		"Streaming explicitly should stream the output.": {
			body:      `{"mode": "stream", "options": {"dry_run": true}}`,
			expStatus: "succeeded",
		},

		"A failed execution should end the stream and be recorded as failed.": {
			body:      `{"options": {"env": {"FAIL": "1"}}}`,
			expStatus: "failed",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			s := newTestServer(t)

			resp := s.do(t, http.MethodPost, "/executions", test.body)
			require.Equal(http.StatusOK, resp.StatusCode)
			assert.Equal("application/x-ndjson", resp.Header.Get("Content-Type"))
			id := resp.Header.Get("X-Execution-Id")
			require.NotEmpty(id)

			events := []string{}
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				events = append(events, sc.Text())
			}
			require.NoError(sc.Err())

			exp := []string{`{"line":"hello"}`, `{"line":"EOF"}`, `{"line":"bye"}`, `{"eof":true}`}
			assert.Equal(exp, events)

			e := s.waitFinished(t, id)
			assert.Equal(test.expStatus, e.Status)
		})
	}
}

func TestCreateCapture(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/executions", `{"mode": "capture", "options": {"env": {"BLOCK": "1"}}}`)
	require.Equal(http.StatusAccepted, resp.StatusCode)
	e := decode[execution](t, resp)
	require.NotEmpty(e.ID)
	assert.Equal("queued", e.Status)

	// Nothing has been written yet, the long poll times out empty.
	resp = s.do(t, http.MethodGet, "/executions/"+e.ID+"/output?wait=true", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(outputResp{Lines: []string{}}, decode[outputResp](t, resp))

	close(s.release)

	lines := []string{}
	eof := false
	for i := 0; i < 100 && !eof; i++ {
		resp = s.do(t, http.MethodGet, "/executions/"+e.ID+"/output?wait=true", "")
		require.Equal(http.StatusOK, resp.StatusCode)
		out := decode[outputResp](t, resp)
		lines = append(lines, out.Lines...)
		eof = out.EOF
	}
	require.True(eof)
	assert.Equal([]string{"hello", "EOF", "bye"}, lines)

	// Once the end has been delivered the output is forgotten.
	resp = s.do(t, http.MethodGet, "/executions/"+e.ID+"/output", "")
	assert.Equal(http.StatusNotFound, resp.StatusCode)

	assert.Equal("succeeded", s.waitFinished(t, e.ID).Status)
}

func TestCreateQueuedNotice(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/executions", `{"mode": "capture", "options": {"env": {"BLOCK": "1"}}}`)
	require.Equal(http.StatusAccepted, resp.StatusCode)
	first := decode[execution](t, resp)

	resp = s.do(t, http.MethodPost, "/executions", `{"mode": "capture"}`)
	require.Equal(http.StatusAccepted, resp.StatusCode)
	second := decode[execution](t, resp)

	resp = s.do(t, http.MethodGet, "/executions/"+second.ID+"/output", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(outputResp{Lines: []string{worker.QueuedNotice}}, decode[outputResp](t, resp))

	close(s.release)
	assert.Equal("succeeded", s.waitFinished(t, first.ID).Status)
	assert.Equal("succeeded", s.waitFinished(t, second.ID).Status)
}

func TestCreateDetached(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/executions", `{"mode": "detached"}`)
	require.Equal(http.StatusAccepted, resp.StatusCode)
	e := decode[execution](t, resp)

	assert.Equal("succeeded", s.waitFinished(t, e.ID).Status)

	resp = s.do(t, http.MethodGet, "/executions/"+e.ID+"/output", "")
	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	tests := map[string]struct {
		method  string
		path    string
		body    string
		expCode int
	}{
		"An unknown mode should fail.": {
			method: http.MethodPost, path: "/executions", body: `{"mode": "other"}`, expCode: http.StatusBadRequest,
		},
		"Unknown fields should fail.": {
			method: http.MethodPost, path: "/executions", body: `{"wat": true}`, expCode: http.StatusBadRequest,
		},
		"Malformed JSON should fail.": {
			method: http.MethodPost, path: "/executions", body: `{`, expCode: http.StatusBadRequest,
		},
		"Invalid options should fail.": {
			method: http.MethodPost, path: "/executions", body: `{"mode": "detached", "options": {"only": [""]}}`, expCode: http.StatusBadRequest,
		},
		"An unknown status filter should fail.": {
			method: http.MethodGet, path: "/executions?status=other", expCode: http.StatusBadRequest,
		},
		"An invalid limit should fail.": {
			method: http.MethodGet, path: "/executions?limit=abc", expCode: http.StatusBadRequest,
		},
		"An invalid wait should fail.": {
			method: http.MethodGet, path: "/executions/x/output?wait=maybe", expCode: http.StatusBadRequest,
		},
		"A missing execution should not be found.": {
			method: http.MethodGet, path: "/executions/missing", expCode: http.StatusNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)

			resp := s.do(t, test.method, test.path, test.body)

			assert.Equal(t, test.expCode, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListAndGet(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := newTestServer(t)

	ids := []string{}
	for _, body := range []string{`{"mode": "detached"}`, `{"mode": "detached", "options": {"env": {"FAIL": "1"}}}`} {
		resp := s.do(t, http.MethodPost, "/executions", body)
		require.Equal(http.StatusAccepted, resp.StatusCode)
		e := decode[execution](t, resp)
		s.waitFinished(t, e.ID)
		ids = append(ids, e.ID)
	}

	resp := s.do(t, http.MethodGet, "/executions", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	all := decode[[]execution](t, resp)
	require.Len(all, 2)

	resp = s.do(t, http.MethodGet, "/executions?status=failed&limit=5", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	failed := decode[[]execution](t, resp)
	require.Len(failed, 1)
	assert.Equal(ids[1], failed[0].ID)
	assert.Equal("failed on purpose", failed[0].Error)

	resp = s.do(t, http.MethodGet, "/executions/latest", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains([]string{ids[0], ids[1]}, decode[execution](t, resp).ID)

	resp = s.do(t, http.MethodGet, "/", "")
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/executions", resp.Request.URL.Path)
}
