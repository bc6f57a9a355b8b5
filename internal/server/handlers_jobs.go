package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/server/middleware"
	"github.com/Vartmor/CADLift-sub001/internal/storage"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

const (
	maxRequestBytes = 32 << 20
	maxImageBytes   = 20 << 20
	defaultListSize = 50
	maxListSize     = 200
	sseKeepAlive    = 15 * time.Second
)

var validate = validator.New()

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	SourceType   types.SourceType `json:"source_type" validate:"required,oneof=image prompt parametric"`
	Mode         types.Mode       `json:"mode" validate:"required,oneof=2d_to_3d text_to_3d hybrid"`
	Prompt       string           `json:"prompt,omitempty" validate:"max=4000"`
	ImageBase64  string           `json:"image_base64,omitempty"`
	Instructions json.RawMessage  `json:"instructions,omitempty"`
	Params       types.Params     `json:"params"`
}

// CreateJobResponse is returned when a job is accepted.
type CreateJobResponse struct {
	JobID  uuid.UUID   `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// presigner is implemented by blob stores that can hand out direct download URLs.
type presigner interface {
	PresignedURL(ctx context.Context, key, filename string) (string, error)
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, &ErrValidation{Field: "image_base64", Message: "not valid base64"}
	}
	if len(data) == 0 {
		return nil, &ErrValidation{Field: "image_base64", Message: "image is empty"}
	}
	if len(data) > maxImageBytes {
		return nil, &ErrValidation{Field: "image_base64", Message: "image exceeds 20 MiB"}
	}
	return data, nil
}

// validationError flattens validator errors into the first failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: verrs[0].Field(), Message: "failed on " + verrs[0].Tag()}
	}
	return &ErrValidation{Message: err.Error()}
}

// handleCreateJob stores the input, records a pending job and dispatches it.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body CreateJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	req := types.GenerationRequest{
		SourceType:   body.SourceType,
		Mode:         body.Mode,
		Prompt:       body.Prompt,
		Instructions: body.Instructions,
		Params:       body.Params,
	}
	job := jobs.New(userID, req)

	if body.ImageBase64 != "" {
		image, err := decodeImage(body.ImageBase64)
		if err != nil {
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		key := storage.KeyInput(job.ID)
		if _, err := s.blobs.Put(r.Context(), key, image, http.DetectContentType(image)); err != nil {
			log.WithError(err).WithField("job_id", job.ID).Error("failed to store job input")
			s.errorResponse(w, http.StatusInternalServerError, "failed to store input")
			return
		}
		job.Request.PayloadKey, job.InputKey = key, key
	}
	if err := job.Request.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	if err := s.jobs.Create(r.Context(), job); err != nil {
		log.WithError(err).WithField("job_id", job.ID).Error("failed to create job")
		s.errorResponse(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := s.dispatcher.Dispatch(r.Context(), job); err != nil {
		logger := log.WithField("job_id", job.ID)
		logger.WithError(err).Error("failed to dispatch job")
		tracker := jobs.NewTracker(s.jobs, job, nil)
		if ferr := tracker.Fail(context.WithoutCancel(r.Context()), jobs.KindInternal, "dispatch failed: "+err.Error()); ferr != nil {
			logger.WithError(ferr).Error("failed to record dispatch failure")
		}
		s.errorResponse(w, HTTPStatus(err), "failed to dispatch job")
		return
	}

	log.WithFields(log.Fields{
		"job_id":      job.ID,
		"user_id":     userID,
		"source_type": job.Request.SourceType,
		"mode":        job.Request.Mode,
	}).Info("job accepted")
	s.jsonResponse(w, http.StatusAccepted, CreateJobResponse{JobID: job.ID, Status: job.Status})
}

// handleListJobs returns the caller's jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultListSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListSize)
	}

	list, err := s.jobs.ListByUser(r.Context(), userID, limit)
	if err != nil {
		log.WithError(err).Error("failed to list jobs")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	views := make([]jobs.StatusView, 0, len(list))
	for _, j := range list {
		views = append(views, j.View())
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

// ownedJob loads the job named by the {id} path value. Jobs of other users
// are reported as not found.
func (s *Server) ownedJob(r *http.Request) (*jobs.Job, error) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, &ErrValidation{Field: "id", Message: "invalid job ID"}
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, &ErrJobNotFound{JobID: id}
	}
	return job, nil
}

func (s *Server) jobError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("job request failed")
		s.errorResponse(w, status, "internal error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// handleGetJob returns the status projection of one job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ownedJob(r)
	if err != nil {
		s.jobError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job.View())
}

// handleJobEvents streams progress until the job reaches a terminal state.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job, err := s.ownedJob(r)
	if err != nil {
		s.jobError(w, err)
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.eventInterval)
	defer ticker.Stop()

	var last *jobs.StatusView
	lastWrite := time.Now()
	for {
		view := job.View()
		if last == nil || view.Progress != last.Progress || view.Stage != last.Stage || view.Status != last.Status {
			if err := sse.WriteEvent("progress", view); err != nil {
				return
			}
			last, lastWrite = &view, time.Now()
		} else if time.Since(lastWrite) >= sseKeepAlive {
			if err := sse.KeepAlive(); err != nil {
				return
			}
			lastWrite = time.Now()
		}
		switch view.Status {
		case jobs.StatusCompleted:
			_ = sse.WriteEvent("complete", view)
			return
		case jobs.StatusFailed:
			_ = sse.WriteError(view.ErrorKind, view.ErrorMessage)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		next, err := s.jobs.Get(r.Context(), job.ID)
		if err != nil {
			log.WithError(err).WithField("job_id", job.ID).Warn("event stream failed to load job")
			_ = sse.WriteError(jobs.KindStorage, "failed to load job")
			return
		}
		if next == nil {
			_ = sse.WriteError(jobs.KindInternal, "job no longer exists")
			return
		}
		job = next
	}
}

// handleCancelJob asks whoever runs the job to cancel it.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ownedJob(r)
	if err != nil {
		s.jobError(w, err)
		return
	}
	if job.Terminal() {
		s.jobError(w, &ErrConflict{Message: "job already " + string(job.Status)})
		return
	}
	if err := s.dispatcher.Cancel(r.Context(), job.ID); err != nil {
		s.jobError(w, err)
		return
	}
	log.WithField("job_id", job.ID).Info("job cancellation requested")
	s.jsonResponse(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": "cancelling"})
}

// handleArtifact serves one exported format of a completed job.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	job, err := s.ownedJob(r)
	if err != nil {
		s.jobError(w, err)
		return
	}
	format := r.PathValue("format")
	if job.Status != jobs.StatusCompleted {
		s.jobError(w, &ErrConflict{Message: "job is " + string(job.Status)})
		return
	}
	key, ok := job.OutputKeys[format]
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "format not exported: "+format)
		return
	}
	filename := "model." + format

	if p, ok := s.blobs.(presigner); ok {
		url, err := p.PresignedURL(r.Context(), key, filename)
		if err != nil {
			s.jobError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	data, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		s.jobError(w, err)
		return
	}
	w.Header().Set("Content-Type", storage.ContentTypeFor(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
