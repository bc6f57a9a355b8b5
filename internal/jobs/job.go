// Package jobs models the generation job lifecycle: its record, the stage
// state machine, progress tracking, and persistence.
package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vartmor/CADLift-sub001/internal/quality"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Status is the externally visible job status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Error kinds recorded by the pipeline for failures that are not typed errors.
const (
	KindCancelled = "Cancelled"
	KindStorage   = "StorageError"
	KindInternal  = "InternalError"
)

// Job is the lifecycle record of one generation request.
type Job struct {
	ID           uuid.UUID               `json:"id"`
	UserID       uuid.UUID               `json:"user_id"`
	Status       Status                  `json:"status"`
	Stage        Stage                   `json:"stage"`
	Progress     int                     `json:"progress"`
	ErrorKind    string                  `json:"error_kind,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	InputKey     string                  `json:"input_key,omitempty"`
	OutputKeys   map[string]string       `json:"output_keys,omitempty"`
	Request      types.GenerationRequest `json:"request"`
	Result       *ResultSummary          `json:"result,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
}

// ResultSummary is the persisted part of a pipeline result: everything but the bytes.
type ResultSummary struct {
	Metadata types.ResultMetadata `json:"metadata"`
	Quality  quality.Metrics      `json:"quality"`
}

// New returns a pending job for the request.
func New(userID uuid.UUID, req types.GenerationRequest) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    StatusPending,
		Stage:     StagePending,
		InputKey:  req.PayloadKey,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the job is completed or failed.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Hybrid reports whether the job runs the hybrid pipeline.
func (j *Job) Hybrid() bool {
	return j.Request.Mode == types.ModeHybrid
}

// Clone returns a deep copy of the mutable parts of the record.
func (j *Job) Clone() *Job {
	c := *j
	if j.OutputKeys != nil {
		c.OutputKeys = make(map[string]string, len(j.OutputKeys))
		for k, v := range j.OutputKeys {
			c.OutputKeys[k] = v
		}
	}
	if j.Result != nil {
		r := *j.Result
		r.Metadata.Generators = append([]string(nil), j.Result.Metadata.Generators...)
		c.Result = &r
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StatusView is the read-only projection served to callers polling a job.
type StatusView struct {
	ID           uuid.UUID         `json:"id"`
	Status       Status            `json:"status"`
	Stage        Stage             `json:"stage"`
	Progress     int               `json:"progress"`
	ErrorKind    string            `json:"errorKind,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	OutputKeys   map[string]string `json:"outputKeys,omitempty"`
	Result       *ResultSummary    `json:"result,omitempty"`
}

// View projects the job for status queries. Output keys and results are only
// exposed once the job has completed.
func (j *Job) View() StatusView {
	v := StatusView{
		ID:           j.ID,
		Status:       j.Status,
		Stage:        j.Stage,
		Progress:     j.Progress,
		ErrorKind:    j.ErrorKind,
		ErrorMessage: j.ErrorMessage,
	}
	if j.Status == StatusCompleted {
		c := j.Clone()
		v.OutputKeys = c.OutputKeys
		v.Result = c.Result
	}
	return v
}
