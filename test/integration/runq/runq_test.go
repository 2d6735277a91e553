package runq_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intrunq "github.com/slok/runq/test/integration/runq"
)

const testTasks = `env:
  WHO: world
tasks:
  - name: greet
    run: echo "hello $WHO"
  - name: check
    run: test -z "$FAIL"
`

// newTestEnv creates a temp directory with a fresh database path and tasks file.
func newTestEnv(t *testing.T) (dbPath, tasksFile string) {
	t.Helper()

	dir := t.TempDir()
	tasksFile = filepath.Join(dir, "runq.yaml")
	require.NoError(t, os.WriteFile(tasksFile, []byte(testTasks), 0o644))

	return filepath.Join(dir, "test-runq.db"), tasksFile
}

// executionItem matches the JSON output of executions in the CLI and the API.
type executionItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func TestRunHistoryStatus(t *testing.T) {
	config := intrunq.NewConfig(t)
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dbPath, tasksFile := newTestEnv(t)

	stdout, _, err := intrunq.RunRun(ctx, config, dbPath, tasksFile, "--eof-marker")
	require.NoError(err)
	out := string(stdout)
	assert.Contains(out, "hello world\n")
	assert.True(strings.HasSuffix(out, "\nEOF\n"))

	stdout, _, err = intrunq.RunRun(ctx, config, dbPath, tasksFile, "-e", "FAIL=1")
	require.Error(err)
	assert.Contains(string(stdout), "hello world\n")

	stdout, _, err = intrunq.RunHistory(ctx, config, dbPath)
	require.NoError(err)
	var history []executionItem
	require.NoError(json.Unmarshal(stdout, &history))
	require.Len(history, 2)
	assert.Equal("failed", history[0].Status)
	assert.Contains(history[0].Error, "check")
	assert.Equal("succeeded", history[1].Status)

	stdout, _, err = intrunq.RunStatus(ctx, config, dbPath, history[1].ID)
	require.NoError(err)
	var st executionItem
	require.NoError(json.Unmarshal(stdout, &st))
	assert.Equal(history[1].ID, st.ID)
	assert.Equal("succeeded", st.Status)

	_, _, err = intrunq.RunStatus(ctx, config, dbPath, "missing")
	assert.Error(err)
}

func TestServeStream(t *testing.T) {
	config := intrunq.NewConfig(t)
	assert := assert.New(t)
	require := require.New(t)

	dbPath, tasksFile := newTestEnv(t)
	url := intrunq.StartServe(t, config, dbPath, tasksFile)

	resp, err := http.Post(url+"/executions", "application/json", strings.NewReader(`{"options": {"env": {"WHO": "api"}}}`))
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Execution-Id")
	require.NotEmpty(id)

	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		events = append(events, sc.Text())
	}
	require.NoError(sc.Err())
	require.NotEmpty(events)
	assert.Contains(events, `{"line":"hello api"}`)
	assert.Equal(`{"eof":true}`, events[len(events)-1])

	resp, err = http.Get(url + "/executions/" + id)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
	var st executionItem
	require.NoError(json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal("succeeded", st.Status)

	resp, err = http.Get(url + "/executions/missing")
	require.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusNotFound, resp.StatusCode)
}
