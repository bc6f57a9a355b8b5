package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Local talks to a self-hosted inference server exposing GET /health and
// POST /generate. The server answers /generate with the mesh bytes and a
// model/stl or model/gltf-binary content type.
type Local struct {
	baseURL string
	client  *http.Client
	probe   *http.Client

	mu     sync.Mutex
	device string
}

// NewLocal returns a backend for the server at baseURL.
func NewLocal(baseURL string, timeout time.Duration) *Local {
	return &Local{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient(timeout),
		probe:   httpClient(5 * time.Second),
		device:  "unknown",
	}
}

func (l *Local) Name() string { return "local" }

// Device returns the device last reported by /health.
func (l *Local) Device() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.device
}

type healthResponse struct {
	Status string `json:"status"`
	Device string `json:"device"`
}

// Availability probes /health.
func (l *Local) Availability(ctx context.Context) types.Availability {
	if l.baseURL == "" {
		return types.Unavailable("NEURAL_URL not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return types.Unavailable(err.Error())
	}
	resp, err := l.probe.Do(req)
	if err != nil {
		return types.Unavailable(fmt.Sprintf("inference server unreachable: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Unavailable(fmt.Sprintf("inference server unhealthy: status %d", resp.StatusCode))
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err == nil && health.Device != "" {
		l.mu.Lock()
		l.device = health.Device
		l.mu.Unlock()
	}
	if health.Status != "" && health.Status != "ok" {
		return types.Unavailable("inference server status " + health.Status)
	}
	return types.Available()
}

type localRequest struct {
	Mode          string  `json:"mode"`
	Prompt        string  `json:"prompt,omitempty"`
	ImageBase64   string  `json:"image_base64,omitempty"`
	GuidanceScale float64 `json:"guidance_scale"`
	NumSteps      int     `json:"num_steps"`
}

func (l *Local) GenerateMesh(ctx context.Context, cond generator.Conditioning, params generator.NeuralParams) (*generator.MeshPayload, error) {
	body := localRequest{
		Mode:          string(cond.Kind),
		Prompt:        cond.Prompt,
		GuidanceScale: params.GuidanceScale,
		NumSteps:      params.NumSteps,
	}
	if cond.Kind == generator.ConditionImage {
		body.ImageBase64 = base64.StdEncoding.EncodeToString(cond.Image)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, readError("inference server", resp)
	}
	data, err := readMesh(resp)
	if err != nil {
		return nil, err
	}
	return &generator.MeshPayload{Data: data, Format: formatOf(resp.Header.Get("Content-Type"), "glb")}, nil
}
