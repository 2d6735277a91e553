package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/utils/env"
)

// TasksYAMLRepository loads task definitions from YAML files.
type TasksYAMLRepository struct {
	fs fs.FS
}

// NewTasksYAMLRepository creates a new YAML tasks repository.
func NewTasksYAMLRepository(filesystem fs.FS) *TasksYAMLRepository {
	return &TasksYAMLRepository{fs: filesystem}
}

// ListTasks loads the tasks file and returns the validated task definitions in file order.
func (r *TasksYAMLRepository) ListTasks(ctx context.Context, path string) ([]model.TaskDefinition, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var file TasksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := file.validate(); err != nil {
		return nil, fmt.Errorf("invalid tasks file: %w: %w", err, model.ErrNotValid)
	}

	return file.toModel(), nil
}

// TasksFile represents the YAML structure of a tasks file.
type TasksFile struct {
	// Env is applied to all the tasks, task env has priority.
	Env   map[string]string `yaml:"env"`
	Tasks []TaskConfig      `yaml:"tasks"`
}

// TaskConfig represents the YAML structure of a single task.
type TaskConfig struct {
	Name string `yaml:"name"`
	// Command is the argv of the process.
	Command []string `yaml:"command"`
	// Run is a shell script, run with `sh -c`.
	Run        string            `yaml:"run"`
	WorkingDir string            `yaml:"working_dir"`
	Env        map[string]string `yaml:"env"`
}

func (f TasksFile) validate() error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}

	names := map[string]struct{}{}
	for i, t := range f.Tasks {
		if err := t.validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("task %q is duplicated", t.Name)
		}
		names[t.Name] = struct{}{}
	}

	return nil
}

func (t TaskConfig) validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}

	hasCommand := len(t.Command) > 0
	hasRun := t.Run != ""
	if hasCommand == hasRun {
		return fmt.Errorf("exactly one of command or run must be specified")
	}
	if hasCommand && t.Command[0] == "" {
		return fmt.Errorf("command binary can't be empty")
	}

	return nil
}

func (f TasksFile) toModel() []model.TaskDefinition {
	tasks := make([]model.TaskDefinition, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		cmd := t.Command
		if t.Run != "" {
			cmd = []string{"sh", "-c", t.Run}
		}

		tasks = append(tasks, model.TaskDefinition{
			Name:       t.Name,
			Command:    cmd,
			WorkingDir: t.WorkingDir,
			Env:        env.Merge(f.Env, t.Env),
		})
	}

	return tasks
}
