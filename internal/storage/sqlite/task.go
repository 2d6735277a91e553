package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
)

// TaskRepositoryConfig is the configuration for the SQLite task repository.
type TaskRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskRepository"})
	return nil
}

// TaskRepository is a SQLite implementation of storage.TaskRepository.
type TaskRepository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.TaskRepository = &TaskRepository{}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

// SetTasks replaces the tasks of an execution with pending ones, in run order.
func (r *TaskRepository) SetTasks(ctx context.Context, executionID string, names []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("could not delete previous tasks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, execution_id, sequence, name, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, '', ?)
	`)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Unix()
	for i, name := range names {
		_, err := stmt.ExecContext(ctx, ulid.Make().String(), executionID, i+1, name, model.TaskStatusPending, createdAt)
		if err != nil {
			return fmt.Errorf("could not insert task %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Execution %s has %d tasks", executionID, len(names))
	return nil
}

// NextTask returns the first pending task of an execution, nil when none is left.
func (r *TaskRepository) NextTask(ctx context.Context, executionID string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx, selectTasks+`
		WHERE execution_id = ? AND status = ?
		ORDER BY sequence ASC
		LIMIT 1
	`, executionID, model.TaskStatusPending)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not query next task: %w", err)
	}

	return &t, nil
}

// CompleteTask marks a task as done.
func (r *TaskRepository) CompleteTask(ctx context.Context, taskID string) error {
	return r.setStatus(ctx, taskID, model.TaskStatusDone, "")
}

// FailTask marks a task as failed with the error message.
func (r *TaskRepository) FailTask(ctx context.Context, taskID string, taskErr error) error {
	msg := ""
	if taskErr != nil {
		msg = taskErr.Error()
	}
	return r.setStatus(ctx, taskID, model.TaskStatusFailed, msg)
}

func (r *TaskRepository) setStatus(ctx context.Context, taskID string, status model.TaskStatus, msg string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = ?, error = ? WHERE id = ?`, status, msg, taskID)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	r.logger.Debugf("Task %s %s", taskID, status)
	return nil
}

// Progress returns how many tasks of an execution are done out of the total.
func (r *TaskRepository) Progress(ctx context.Context, executionID string) (*model.TaskProgress, error) {
	var p model.TaskProgress
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(status = ?), 0)
		FROM tasks
		WHERE execution_id = ?
	`, model.TaskStatusDone, executionID).Scan(&p.Total, &p.Done)
	if err != nil {
		return nil, fmt.Errorf("could not query progress: %w", err)
	}

	return &p, nil
}

// ListTasks returns the tasks of an execution in run order.
func (r *TaskRepository) ListTasks(ctx context.Context, executionID string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, selectTasks+`
		WHERE execution_id = ?
		ORDER BY sequence ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

const selectTasks = `SELECT id, execution_id, sequence, name, status, error, created_at FROM tasks`

func scanTask(s scanner) (model.Task, error) {
	var (
		t         model.Task
		createdAt int64
	)
	if err := s.Scan(&t.ID, &t.ExecutionID, &t.Sequence, &t.Name, &t.Status, &t.Error, &createdAt); err != nil {
		return model.Task{}, err
	}

	t.CreatedAt = timeFromUnix(createdAt)
	return t, nil
}
