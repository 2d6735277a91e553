package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(" +")

// RunRunq executes a runq command with the given arguments string (split by spaces).
// Use RunRunqArgs when arguments contain spaces that should be preserved.
func RunRunq(ctx context.Context, env []string, binary, cmdArgs string, nolog bool) (stdout, stderr []byte, err error) {
	// Sanitize command.
	cmdArgs = strings.TrimSpace(cmdArgs)
	cmdArgs = multiSpaceRegex.ReplaceAllString(cmdArgs, " ")

	// Split into args.
	var args []string
	if cmdArgs != "" {
		args = strings.Split(cmdArgs, " ")
	}

	return RunRunqArgs(ctx, env, binary, args, nolog)
}

// RunRunqArgs executes a runq command with pre-split arguments.
func RunRunqArgs(ctx context.Context, env []string, binary string, args []string, nolog bool) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := NewRunqCmd(ctx, env, binary, args, nolog)
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}

// NewRunqCmd returns a runq command ready to be started, used for long running
// commands like serve.
func NewRunqCmd(ctx context.Context, env []string, binary string, args []string, nolog bool) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...)

	// Set env: os.Environ() first, then custom env overrides on top.
	// In Go's exec.Cmd, when duplicate keys exist, the last one wins.
	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	if nolog {
		newEnv = append(newEnv, "RUNQ_NO_LOG=true")
	}
	cmd.Env = newEnv

	return cmd
}
