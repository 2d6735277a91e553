package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
	"github.com/slok/runq/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.ExecutionRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.ExecutionRepository = &Repository{}

// NewRepository creates a new SQLite repository, the schema is migrated on creation.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	version, _, err := migrator.Version(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// DB returns the database connection so other repositories can share it.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateExecution stores a new execution.
func (r *Repository) CreateExecution(ctx context.Context, e model.Execution) error {
	opts, err := encodeOptions(e.Options)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (id, status, options, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.Status,
		opts,
		e.Error,
		e.CreatedAt.Unix(),
		unixOrNil(e.StartedAt),
		unixOrNil(e.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: executions.") {
			return fmt.Errorf("execution %s: %w", e.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert execution: %w", err)
	}

	r.logger.Debugf("Created execution in repository: %s", e.ID)
	return nil
}

// GetExecution retrieves an execution by ID.
func (r *Repository) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	query := `
		SELECT id, status, options, error, created_at, started_at, finished_at
		FROM executions
		WHERE id = ?
	`

	e, err := r.scanRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query execution: %w", err)
	}

	return &e, nil
}

// ListExecutions returns executions, newest first.
func (r *Repository) ListExecutions(ctx context.Context, opts storage.ListExecutionsOpts) ([]model.Execution, error) {
	query := `
		SELECT id, status, options, error, created_at, started_at, finished_at
		FROM executions
	`
	args := []any{}
	if opts.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, *opts.Status)
	}
	// IDs are ULIDs, they break ties between executions created in the same second.
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query executions: %w", err)
	}
	defer rows.Close()

	executions := []model.Execution{}
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return executions, nil
}

// UpdateExecution updates an existing execution.
func (r *Repository) UpdateExecution(ctx context.Context, e model.Execution) error {
	opts, err := encodeOptions(e.Options)
	if err != nil {
		return err
	}

	query := `
		UPDATE executions
		SET
			status = ?,
			options = ?,
			error = ?,
			created_at = ?,
			started_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		e.Status,
		opts,
		e.Error,
		e.CreatedAt.Unix(),
		unixOrNil(e.StartedAt),
		unixOrNil(e.FinishedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update execution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("execution %s: %w", e.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated execution in repository: %s (%s)", e.ID, e.Status)
	return nil
}

// InterruptExecutions marks all the unfinished executions as failed.
func (r *Repository) InterruptExecutions(ctx context.Context, reason string) (int, error) {
	query := `
		UPDATE executions
		SET status = ?, error = ?, finished_at = ?
		WHERE status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		model.ExecutionStatusFailed,
		reason,
		time.Now().UTC().Unix(),
		model.ExecutionStatusQueued,
		model.ExecutionStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("could not update executions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}

	r.logger.Debugf("Interrupted %d executions", rows)
	return int(rows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (model.Execution, error) {
	var e model.Execution
	var opts string
	var createdAt, startedAt, finishedAt sql.NullInt64

	err := s.Scan(
		&e.ID,
		&e.Status,
		&opts,
		&e.Error,
		&createdAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return model.Execution{}, err
	}

	e.Options, err = decodeOptions(opts)
	if err != nil {
		return model.Execution{}, err
	}

	if !createdAt.Valid {
		return model.Execution{}, fmt.Errorf("created_at is required")
	}
	e.CreatedAt = timeFromUnix(createdAt.Int64)
	e.StartedAt = timeFromNullUnix(startedAt)
	e.FinishedAt = timeFromNullUnix(finishedAt)

	return e, nil
}

func encodeOptions(opts *model.RunOptions) (string, error) {
	if opts == nil {
		return "", nil
	}

	data, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("could not encode options: %w", err)
	}

	return string(data), nil
}

func decodeOptions(data string) (*model.RunOptions, error) {
	if data == "" {
		return nil, nil
	}

	opts := &model.RunOptions{}
	if err := json.Unmarshal([]byte(data), opts); err != nil {
		return nil, fmt.Errorf("could not decode options: %w", err)
	}

	return opts, nil
}

func unixOrNil(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}

func timeFromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := timeFromUnix(n.Int64)
	return &t
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
