package generator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Vision converts a raster image into contour polygons in pixel coordinates
// (origin top-left, y down).
type Vision interface {
	Name() string
	Availability(ctx context.Context) types.Availability
	Vectorize(ctx context.Context, image []byte, mimeType string) ([]mesh.Polygon, error)
}

// Vectorizer extrudes the contours returned by a Vision capability.
type Vectorizer struct {
	Vision  Vision
	Timeout time.Duration
}

// NewVectorizer returns a vectorizer whose vision call is bounded by timeout.
func NewVectorizer(vision Vision, timeout time.Duration) *Vectorizer {
	return &Vectorizer{Vision: vision, Timeout: timeout}
}

// Name returns "vectorizer".
func (v *Vectorizer) Name() string { return NameVectorizer }

// Availability mirrors the vision capability.
func (v *Vectorizer) Availability(ctx context.Context) types.Availability {
	if v.Vision == nil {
		return types.Unavailable("no vision capability configured")
	}
	return v.Vision.Availability(ctx)
}

// Generate vectorizes the image, keeps polygons with at least three points and
// non-zero area, and extrudes each to the requested height. The pieces are
// merged into one mesh tagged parametric.
func (v *Vectorizer) Generate(ctx context.Context, in Input) (*Output, error) {
	if len(in.Image) == 0 {
		return nil, &VectorizationError{Message: "no image supplied"}
	}
	if a := v.Availability(ctx); !a.OK {
		return nil, &VectorizationError{Message: "vision capability unavailable: " + a.Reason}
	}
	params := in.Params.WithDefaults()

	runCtx, cancel, d := withTimeout(ctx, v.Timeout)
	defer cancel()

	polys, err := v.Vision.Vectorize(runCtx, in.Image, in.ImageMIME)
	if err != nil {
		if derr := deadlineError(ctx, runCtx, v.Name(), d); derr != nil {
			return nil, derr
		}
		return nil, &VectorizationError{Message: "vision call failed", Cause: err}
	}

	kept := mesh.FilterPolygons(polys)
	log.WithFields(log.Fields{
		"returned": len(polys),
		"kept":     len(kept),
	}).Debug("vectorized image")
	if len(kept) == 0 {
		return nil, &VectorizationError{Message: "no polygon with at least three points"}
	}

	pieces := make([]*mesh.Mesh, 0, len(kept))
	for _, p := range kept {
		pieces = append(pieces, mesh.Extrude(toModelSpace(p, params.PixelSize), params.ExtrudeHeight, mesh.ProvenanceParametric))
	}
	return &Output{
		Mesh:      mesh.Merge(mesh.ProvenanceParametric, pieces...),
		Generator: v.Name(),
		Provider:  v.Vision.Name(),
	}, nil
}

// toModelSpace scales pixels to mesh units and flips the image y axis.
func toModelSpace(p mesh.Polygon, pixelSize float64) mesh.Polygon {
	out := make(mesh.Polygon, len(p))
	for i, pt := range p {
		out[i] = mesh.Point2{pt[0] * pixelSize, -pt[1] * pixelSize}
	}
	return out
}
