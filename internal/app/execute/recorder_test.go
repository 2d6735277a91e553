package execute_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage/storagemock"
	"github.com/slok/runq/internal/worker"
	"github.com/slok/runq/internal/worker/workermock"
)

func TestNewRecorder(t *testing.T) {
	tests := map[string]struct {
		config execute.RecorderConfig
		expErr bool
	}{
		"valid config should create the recorder": {
			config: execute.RecorderConfig{
				Executor:   &workermock.MockExecutor{},
				Repository: &storagemock.MockExecutionRepository{},
				Logger:     log.Noop,
			},
		},
		"missing executor should fail": {
			config: execute.RecorderConfig{Repository: &storagemock.MockExecutionRepository{}},
			expErr: true,
		},
		"missing repository should fail": {
			config: execute.RecorderConfig{Executor: &workermock.MockExecutor{}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute.NewRecorder(test.config)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecorderExecute(t *testing.T) {
	createdAt := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	queued := func() *model.Execution {
		return &model.Execution{ID: "e1", Status: model.ExecutionStatusQueued, CreatedAt: createdAt}
	}
	isRunning := func(e model.Execution) bool {
		return e.Status == model.ExecutionStatusRunning && e.StartedAt != nil && e.FinishedAt == nil
	}

	tests := map[string]struct {
		mock     func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor)
		expErr   bool
		expPanic bool
	}{
		"A successful execution should be recorded as running and then succeeded.": {
			mock: func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor) {
				mr.On("GetExecution", mock.Anything, "e1").Once().Return(queued(), nil)
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(isRunning)).Once().Return(nil)
				me.On("Execute", mock.Anything, mock.Anything).Once().Return(nil)
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e model.Execution) bool {
					return e.Status == model.ExecutionStatusSucceeded && e.FinishedAt != nil && e.Error == ""
				})).Once().Return(nil)
			},
		},

		"A failed execution should be recorded as failed with the error.": {
			mock: func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor) {
				mr.On("GetExecution", mock.Anything, "e1").Once().Return(queued(), nil)
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(isRunning)).Once().Return(nil)
				me.On("Execute", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("boom"))
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e model.Execution) bool {
					return e.Status == model.ExecutionStatusFailed && e.Error == "boom"
				})).Once().Return(nil)
			},
			expErr: true,
		},

		"A panicking execution should be recorded as failed and panic again.": {
			mock: func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor) {
				mr.On("GetExecution", mock.Anything, "e1").Once().Return(queued(), nil)
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(isRunning)).Once().Return(nil)
				me.On("Execute", mock.Anything, mock.Anything).Once().Run(func(mock.Arguments) { panic("kaboom") })
				mr.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e model.Execution) bool {
					return e.Status == model.ExecutionStatusFailed && e.Error == "panic: kaboom"
				})).Once().Return(nil)
			},
			expPanic: true,
		},

		"A missing record should execute without recording.": {
			mock: func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor) {
				mr.On("GetExecution", mock.Anything, "e1").Once().Return(nil, model.ErrNotFound)
				me.On("Execute", mock.Anything, mock.Anything).Once().Return(nil)
			},
		},

		"Recording errors should not stop the execution.": {
			mock: func(mr *storagemock.MockExecutionRepository, me *workermock.MockExecutor) {
				mr.On("GetExecution", mock.Anything, "e1").Once().Return(queued(), nil)
				mr.On("UpdateExecution", mock.Anything, mock.Anything).Twice().Return(fmt.Errorf("something"))
				me.On("Execute", mock.Anything, mock.Anything).Once().Return(nil)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mRepo := storagemock.NewMockExecutionRepository(t)
			mExec := workermock.NewMockExecutor(t)
			test.mock(mRepo, mExec)

			rec, err := execute.NewRecorder(execute.RecorderConfig{Executor: mExec, Repository: mRepo})
			require.NoError(err)

			st := &worker.State{ExecutionID: "e1", Logger: log.Noop}
			if test.expPanic {
				assert.Panics(func() { _ = rec.Execute(context.Background(), st) })
				return
			}

			err = rec.Execute(context.Background(), st)
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
		})
	}
}
