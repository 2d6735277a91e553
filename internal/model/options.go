package model

import (
	"fmt"
	"maps"
	"slices"
)

// RunOptions is the run configuration in effect for an execution.
type RunOptions struct {
	// Only restricts the run to these task names, empty means all tasks.
	Only []string `json:"only,omitempty" yaml:"only,omitempty"`
	// DryRun logs what would be run without running anything.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	// Env contains environment variables merged over every task environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Clone returns a deep copy of the options.
func (o *RunOptions) Clone() *RunOptions {
	if o == nil {
		return nil
	}

	return &RunOptions{
		Only:   slices.Clone(o.Only),
		DryRun: o.DryRun,
		Env:    maps.Clone(o.Env),
	}
}

// Validate checks the options are correct.
func (o RunOptions) Validate() error {
	for _, name := range o.Only {
		if name == "" {
			return fmt.Errorf("task name can't be empty: %w", ErrNotValid)
		}
	}
	for k := range o.Env {
		if k == "" {
			return fmt.Errorf("env var key can't be empty: %w", ErrNotValid)
		}
	}

	return nil
}

// TaskDefinition is a named command that an execution runs.
type TaskDefinition struct {
	Name       string
	Command    []string
	WorkingDir string
	Env        map[string]string
}
