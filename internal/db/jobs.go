package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// ErrJobExists is returned by CreateJob for a duplicate id.
var ErrJobExists = errors.New("job already exists")

const uniqueViolation = "23505"

const jobColumns = `id, user_id, status, stage, progress, error_kind, error_message,
	input_key, output_keys, request, result, created_at, updated_at, started_at, completed_at`

// jobRow is the column form of a job. Nullable text columns and JSON
// documents are held as pointers and raw bytes.
type jobRow struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Status       string
	Stage        string
	Progress     int
	ErrorKind    *string
	ErrorMessage *string
	InputKey     *string
	OutputKeys   []byte
	Request      []byte
	Result       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRow(job *jobs.Job) (*jobRow, error) {
	r := &jobRow{
		ID:           job.ID,
		UserID:       job.UserID,
		Status:       string(job.Status),
		Stage:        string(job.Stage),
		Progress:     job.Progress,
		ErrorKind:    nullable(job.ErrorKind),
		ErrorMessage: nullable(job.ErrorMessage),
		InputKey:     nullable(job.InputKey),
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	var err error
	if r.Request, err = json.Marshal(job.Request); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if len(job.OutputKeys) > 0 {
		if r.OutputKeys, err = json.Marshal(job.OutputKeys); err != nil {
			return nil, fmt.Errorf("failed to marshal output keys: %w", err)
		}
	}
	if job.Result != nil {
		if r.Result, err = json.Marshal(job.Result); err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	return r, nil
}

func (r *jobRow) toJob() (*jobs.Job, error) {
	job := &jobs.Job{
		ID:           r.ID,
		UserID:       r.UserID,
		Status:       jobs.Status(r.Status),
		Stage:        jobs.Stage(r.Stage),
		Progress:     r.Progress,
		ErrorKind:    deref(r.ErrorKind),
		ErrorMessage: deref(r.ErrorMessage),
		InputKey:     deref(r.InputKey),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}
	var req types.GenerationRequest
	if err := json.Unmarshal(r.Request, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	job.Request = req
	if len(r.OutputKeys) > 0 {
		if err := json.Unmarshal(r.OutputKeys, &job.OutputKeys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output keys: %w", err)
		}
	}
	if len(r.Result) > 0 {
		var res jobs.ResultSummary
		if err := json.Unmarshal(r.Result, &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		job.Result = &res
	}
	return job, nil
}

func (r *jobRow) scan(row pgx.Row) error {
	return row.Scan(&r.ID, &r.UserID, &r.Status, &r.Stage, &r.Progress, &r.ErrorKind, &r.ErrorMessage,
		&r.InputKey, &r.OutputKeys, &r.Request, &r.Result, &r.CreatedAt, &r.UpdatedAt, &r.StartedAt, &r.CompletedAt)
}

// CreateJob inserts a new job record
func (db *DB) CreateJob(ctx context.Context, job *jobs.Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO generation_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.UserID, r.Status, r.Stage, r.Progress, r.ErrorKind, r.ErrorMessage,
		r.InputKey, r.OutputKeys, r.Request, r.Result, r.CreatedAt, r.UpdatedAt, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrJobExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob overwrites the mutable columns of an existing job
func (db *DB) UpdateJob(ctx context.Context, job *jobs.Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE generation_jobs SET status = $2, stage = $3, progress = $4, error_kind = $5,
		        error_message = $6, input_key = $7, output_keys = $8, result = $9,
		        updated_at = $10, started_at = $11, completed_at = $12
		 WHERE id = $1`,
		r.ID, r.Status, r.Stage, r.Progress, r.ErrorKind,
		r.ErrorMessage, r.InputKey, r.OutputKeys, r.Result,
		r.UpdatedAt, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID, returning nil if it does not exist
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var r jobRow
	err := r.scan(db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return r.toJob()
}

// ListJobsByUser retrieves a user's jobs, newest first. A non-positive
// limit returns all of them.
func (db *DB) ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		var r jobRow
		if err := r.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job, err := r.toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// JobStore adapts DB to jobs.Store.
type JobStore struct {
	DB *DB
}

func (s JobStore) Create(ctx context.Context, job *jobs.Job) error { return s.DB.CreateJob(ctx, job) }
func (s JobStore) Update(ctx context.Context, job *jobs.Job) error { return s.DB.UpdateJob(ctx, job) }
func (s JobStore) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	return s.DB.GetJob(ctx, id)
}
func (s JobStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*jobs.Job, error) {
	return s.DB.ListJobsByUser(ctx, userID, limit)
}

var _ jobs.Store = JobStore{}
