package io

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/model"
)

func TestTasksYAMLRepository_ListTasks(t *testing.T) {
	tests := map[string]struct {
		fs       fstest.MapFS
		path     string
		expTasks []model.TaskDefinition
		expErr   bool
		errMsg   string
	}{
		"Valid tasks file should load successfully in order.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - name: build
    command: ["go", "build", "./..."]
    working_dir: /src
  - name: test
    command: ["go", "test", "./..."]
`),
				},
			},
			path: "tasks.yaml",
			expTasks: []model.TaskDefinition{
				{Name: "build", Command: []string{"go", "build", "./..."}, WorkingDir: "/src"},
				{Name: "test", Command: []string{"go", "test", "./..."}},
			},
		},

		"Run scripts should be executed with a shell.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{
					Data: []byte(`tasks:
  - name: hello
    run: echo hello && echo world
`),
				},
			},
			path: "tasks.yaml",
			expTasks: []model.TaskDefinition{
				{Name: "hello", Command: []string{"sh", "-c", "echo hello && echo world"}},
			},
		},

		"Global env should be merged with task env, task env has priority.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{
					Data: []byte(`env:
  FOO: global
  BAR: global
tasks:
  - name: t1
    run: env
    env:
      FOO: task
  - name: t2
    run: env
`),
				},
			},
			path: "tasks.yaml",
			expTasks: []model.TaskDefinition{
				{Name: "t1", Command: []string{"sh", "-c", "env"}, Env: map[string]string{"FOO": "task", "BAR": "global"}},
				{Name: "t2", Command: []string{"sh", "-c", "env"}, Env: map[string]string{"FOO": "global", "BAR": "global"}},
			},
		},

		"Missing file should return error.": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading tasks file",
		},

		"Invalid YAML should return error.": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"A file without tasks should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`env: {A: b}`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "at least one task is required",
		},

		"A task without name should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{run: "true"}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "name is required",
		},

		"A task with command and run should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: t1, run: "true", command: ["true"]}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "exactly one of command or run",
		},

		"Duplicated task names should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: t1, run: "true"}, {name: t1, run: "false"}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: `task "t1" is duplicated`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := NewTasksYAMLRepository(test.fs)
			tasks, err := repo.ListTasks(context.Background(), test.path)

			if test.expErr {
				require.Error(err)
				assert.Contains(err.Error(), test.errMsg)
			} else {
				require.NoError(err)
				assert.Equal(test.expTasks, tasks)
			}
		})
	}
}
