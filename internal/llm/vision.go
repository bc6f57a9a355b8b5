package llm

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/schemas"
	"github.com/Vartmor/CADLift-sub001/internal/types"
	rootschemas "github.com/Vartmor/CADLift-sub001/schemas"
)

var polygonSchema = schemas.MustCompile("polygons.schema.json", rootschemas.Polygons)

// maxAttempts is the number of model calls per request, counting the
// feedback turn after an answer that fails schema validation.
const maxAttempts = 2

// Vision traces image contours with a multimodal model.
type Vision struct {
	client Client
	tier   ModelTier
}

// NewVision returns a vision capability. A nil client reports itself
// unavailable.
func NewVision(client Client) *Vision {
	return &Vision{client: client, tier: TierStandard}
}

func (v *Vision) Name() string { return "gemini-vision" }

func (v *Vision) Availability(context.Context) types.Availability {
	if v.client == nil {
		return types.Unavailable("GEMINI_API_KEY not set")
	}
	return types.Available()
}

type contourDocument struct {
	Width    float64        `json:"width"`
	Height   float64        `json:"height"`
	Polygons [][][2]float64 `json:"polygons"`
}

// Vectorize returns the polygons the model traced. Polygons with fewer than
// three points are returned as given; filtering is left to the caller.
func (v *Vision) Vectorize(ctx context.Context, image []byte, mimeType string) ([]mesh.Polygon, error) {
	if v.client == nil {
		return nil, fmt.Errorf("vision capability unavailable")
	}
	prompt := BuildExtractionPrompt(ContourSchema(), "")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := v.client.GenerateJSONWithImage(ctx, prompt, image, mimeType, v.tier)
		if err != nil {
			return nil, fmt.Errorf("vision request failed: %w", err)
		}
		doc, err := parseContours(text)
		if err == nil {
			log.WithFields(log.Fields{
				"polygons": len(doc.Polygons),
				"attempt":  attempt,
			}).Debug("vision contours received")
			return toPolygons(doc), nil
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("vision output rejected")
		prompt = withFeedback(prompt, text, err)
	}
	return nil, fmt.Errorf("vision output invalid after %d attempts: %w", maxAttempts, lastErr)
}

func parseContours(text string) (*contourDocument, error) {
	data := []byte(CleanJSONBlock(text))
	if err := polygonSchema.Validate(data); err != nil {
		return nil, err
	}
	var doc contourDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode contours: %w", err)
	}
	return &doc, nil
}

func toPolygons(doc *contourDocument) []mesh.Polygon {
	out := make([]mesh.Polygon, 0, len(doc.Polygons))
	for _, raw := range doc.Polygons {
		p := make(mesh.Polygon, len(raw))
		for i, pt := range raw {
			p[i] = mesh.Point2(pt)
		}
		out = append(out, p)
	}
	return out
}
