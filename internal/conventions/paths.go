package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default runq data directory name (relative to home).
	DefaultDataDir = ".runq"
	// DBFile is the execution history database filename.
	DBFile = "runq.db"
	// TasksFile is the default tasks filename, looked up in the working directory.
	TasksFile = "runq.yaml"
	// DefaultListenAddr is the default address of the HTTP API.
	DefaultListenAddr = "127.0.0.1:8765"
	// EnvarPrefix is the prefix of the environment variables that set flags.
	EnvarPrefix = "RUNQ"
)

// DataDir returns the data directory inside a home directory.
func DataDir(home string) string {
	return filepath.Join(home, DefaultDataDir)
}

// DBPath returns the default database path inside a home directory.
func DBPath(home string) string {
	return filepath.Join(DataDir(home), DBFile)
}
