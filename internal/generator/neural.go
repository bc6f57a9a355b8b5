package generator

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// ConditioningKind selects what a neural generator conditions on.
type ConditioningKind string

const (
	ConditionImage ConditioningKind = "image"
	ConditionText  ConditioningKind = "text"
)

// Conditioning is the input handed to a neural backend.
type Conditioning struct {
	Kind      ConditioningKind
	Image     []byte
	ImageMIME string
	Prompt    string
}

// NeuralParams are the sampling parameters of a neural backend.
type NeuralParams struct {
	GuidanceScale float64 `json:"guidance_scale"`
	NumSteps      int     `json:"num_steps"`
}

// MeshPayload is the encoded mesh a backend returns.
type MeshPayload struct {
	Data   []byte
	Format string
}

// Backend is a neural inference service, local or remote.
type Backend interface {
	Name() string
	Device() string
	Availability(ctx context.Context) types.Availability
	GenerateMesh(ctx context.Context, cond Conditioning, params NeuralParams) (*MeshPayload, error)
}

// Neural generates meshes through a Backend for one conditioning kind.
type Neural struct {
	Kind    ConditioningKind
	Backend Backend
	Timeout time.Duration
}

// NewNeural returns a neural generator. A nil backend reports itself unavailable.
func NewNeural(kind ConditioningKind, backend Backend, timeout time.Duration) *Neural {
	return &Neural{Kind: kind, Backend: backend, Timeout: timeout}
}

// Name returns "neural-image" or "neural-text".
func (n *Neural) Name() string {
	if n.Kind == ConditionImage {
		return NameNeuralImage
	}
	return NameNeuralText
}

// Availability reports the backend's availability.
func (n *Neural) Availability(ctx context.Context) types.Availability {
	if n.Backend == nil {
		return types.Unavailable("no neural backend configured")
	}
	return n.Backend.Availability(ctx)
}

// Generate conditions the backend on the image or prompt and decodes the
// returned mesh.
func (n *Neural) Generate(ctx context.Context, in Input) (*Output, error) {
	if a := n.Availability(ctx); !a.OK {
		return nil, &GenerationError{Generator: n.Name(), Message: "backend unavailable: " + a.Reason}
	}

	cond := Conditioning{Kind: n.Kind}
	switch n.Kind {
	case ConditionImage:
		if len(in.Image) == 0 {
			return nil, &GenerationError{Generator: n.Name(), Message: "no image supplied"}
		}
		cond.Image, cond.ImageMIME = in.Image, in.ImageMIME
	default:
		if in.Prompt == "" {
			return nil, &GenerationError{Generator: n.Name(), Message: "no prompt supplied"}
		}
		cond.Prompt = in.Prompt
	}
	params := in.Params.WithDefaults()

	runCtx, cancel, d := withTimeout(ctx, n.Timeout)
	defer cancel()

	start := time.Now()
	payload, err := n.Backend.GenerateMesh(runCtx, cond, NeuralParams{
		GuidanceScale: params.GuidanceScale,
		NumSteps:      params.NumSteps,
	})
	if err != nil {
		if derr := deadlineError(ctx, runCtx, n.Name(), d); derr != nil {
			return nil, derr
		}
		return nil, &GenerationError{Generator: n.Name(), Message: fmt.Sprintf("backend %s failed", n.Backend.Name()), Cause: err}
	}

	m, err := mesh.Decode(payload.Format, payload.Data, mesh.ProvenanceNeural)
	if err != nil {
		return nil, &GenerationError{Generator: n.Name(), Message: "backend returned an unreadable mesh", Cause: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &GenerationError{Generator: n.Name(), Message: "backend returned an invalid mesh", Cause: err}
	}

	log.WithFields(log.Fields{
		"generator": n.Name(),
		"backend":   n.Backend.Name(),
		"device":    n.Backend.Device(),
		"faces":     m.FaceCount(),
		"duration":  time.Since(start).String(),
	}).Info("neural mesh generated")

	return &Output{
		Mesh:      m,
		Generator: n.Name(),
		Provider:  "neural",
		Backend:   n.Backend.Name(),
		Device:    n.Backend.Device(),
	}, nil
}
