package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// RemoteConfig configures a hosted task-based provider.
type RemoteConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
}

// Remote creates a generation task, polls it until it settles, and downloads
// the resulting GLB.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemote returns a remote backend. The default poll interval is 5s.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.meshy.ai/v2"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Remote{cfg: cfg, client: httpClient(cfg.HTTPTimeout)}
}

func (r *Remote) Name() string   { return "remote" }
func (r *Remote) Device() string { return "remote" }

// Availability requires credentials and a well-formed endpoint. The provider
// itself is not contacted.
func (r *Remote) Availability(context.Context) types.Availability {
	if r.cfg.APIKey == "" {
		return types.Unavailable("NEURAL_API_KEY not set")
	}
	if u, err := url.Parse(r.cfg.BaseURL); err != nil || u.Host == "" {
		return types.Unavailable(fmt.Sprintf("invalid NEURAL_URL %q", r.cfg.BaseURL))
	}
	return types.Available()
}

type remoteTaskRequest struct {
	Mode          string  `json:"mode,omitempty"`
	Prompt        string  `json:"prompt,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
	NumSteps      int     `json:"num_steps,omitempty"`
}

type remoteTaskResponse struct {
	Result    string `json:"result"`
	TaskID    string `json:"task_id,omitempty"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status"`
	ModelURLs struct {
		GLB string `json:"glb"`
	} `json:"model_urls"`
	TaskError struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

func taskPath(kind generator.ConditioningKind) string {
	if kind == generator.ConditionImage {
		return "image-to-3d"
	}
	return "text-to-3d"
}

func (r *Remote) endpoint(parts ...string) string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/" + strings.Join(parts, "/")
}

func (r *Remote) GenerateMesh(ctx context.Context, cond generator.Conditioning, params generator.NeuralParams) (*generator.MeshPayload, error) {
	body := remoteTaskRequest{GuidanceScale: params.GuidanceScale, NumSteps: params.NumSteps}
	if cond.Kind == generator.ConditionImage {
		body.ImageURL = dataURI(cond.Image, cond.ImageMIME)
	} else {
		body.Mode = "preview"
		body.Prompt = cond.Prompt
	}

	taskID, err := r.createTask(ctx, taskPath(cond.Kind), body)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": taskID, "kind": cond.Kind}).Info("remote generation task created")

	task, err := r.pollTask(ctx, taskPath(cond.Kind), taskID)
	if err != nil {
		return nil, err
	}
	if task.ModelURLs.GLB == "" {
		return nil, fmt.Errorf("task %s succeeded without a GLB url", taskID)
	}
	return r.download(ctx, task.ModelURLs.GLB)
}

func (r *Remote) createTask(ctx context.Context, path string, body remoteTaskRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", readError("remote", resp)
	}

	var task remoteTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	for _, id := range []string{task.TaskID, task.Result, task.ID} {
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("remote response carried no task id")
}

// pollTask polls until the task succeeds or fails. Transport errors are
// retried on the next tick; HTTP errors are not.
func (r *Remote) pollTask(ctx context.Context, path, taskID string) (*remoteTaskResponse, error) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint(path, taskID), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("task_id", taskID).Warn("poll failed, retrying")
			continue
		}
		if resp.StatusCode >= 400 {
			err := readError("remote", resp)
			resp.Body.Close()
			return nil, err
		}
		var task remoteTaskResponse
		err = json.NewDecoder(resp.Body).Decode(&task)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}

		switch task.Status {
		case "SUCCEEDED":
			return &task, nil
		case "FAILED", "EXPIRED", "CANCELED":
			if task.TaskError.Message != "" {
				return nil, fmt.Errorf("remote generation %s: %s", strings.ToLower(task.Status), task.TaskError.Message)
			}
			return nil, fmt.Errorf("remote generation %s", strings.ToLower(task.Status))
		}
	}
}

func (r *Remote) download(ctx context.Context, modelURL string) (*generator.MeshPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, readError("model download", resp)
	}
	data, err := readMesh(resp)
	if err != nil {
		return nil, err
	}
	return &generator.MeshPayload{Data: data, Format: "glb"}, nil
}
