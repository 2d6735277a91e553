package runq

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slok/runq/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "runq"
	}

	// go test changes the CWD to the test package directory, so relative
	// paths would not point where the caller expects.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("RUNQ_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("runq binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "RUNQ_INTEGRATION"
		envBinary     = "RUNQ_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunRun executes `runq run` with the given tasks file and extra args.
func RunRun(ctx context.Context, config Config, dbPath, tasksFile string, args ...string) (stdout, stderr []byte, err error) {
	all := append([]string{"--db-path", dbPath, "run", "--tasks-file", tasksFile}, args...)
	return testutils.RunRunqArgs(ctx, nil, config.Binary, all, true)
}

// RunHistory executes `runq history --format json`.
func RunHistory(ctx context.Context, config Config, dbPath string, args ...string) (stdout, stderr []byte, err error) {
	all := append([]string{"--db-path", dbPath, "history", "--format", "json"}, args...)
	return testutils.RunRunqArgs(ctx, nil, config.Binary, all, true)
}

// RunStatus executes `runq status --format json` for an execution.
func RunStatus(ctx context.Context, config Config, dbPath, id string) (stdout, stderr []byte, err error) {
	return testutils.RunRunqArgs(ctx, nil, config.Binary, []string{"--db-path", dbPath, "status", id, "--format", "json"}, true)
}

// StartServe starts `runq serve` on a free local port and waits until it's
// healthy. It returns the API base URL, the server is stopped on test cleanup.
func StartServe(t *testing.T, config Config, dbPath, tasksFile string) string {
	t.Helper()

	addr := freeAddr(t)
	args := []string{"--db-path", dbPath, "serve", "--tasks-file", tasksFile, "--listen", addr}
	cmd := testutils.NewRunqCmd(context.Background(), nil, config.Binary, args, false)
	require.NoError(t, cmd.Start())

	t.Cleanup(func() {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		_ = cmd.Wait()
	})

	url := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	return url
}

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	return l.Addr().String()
}
