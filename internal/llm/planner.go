package llm

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Planner turns a natural-language description into a parametric program.
type Planner struct {
	client Client
	tier   ModelTier
}

// NewPlanner returns a planner. A nil client reports itself unavailable.
func NewPlanner(client Client) *Planner {
	return &Planner{client: client, tier: TierAdvanced}
}

func (p *Planner) Name() string { return "gemini-planner" }

func (p *Planner) Availability(context.Context) types.Availability {
	if p.client == nil {
		return types.Unavailable("GEMINI_API_KEY not set")
	}
	return types.Available()
}

// Plan asks the model for a program and parses it. A program rejected by the
// parser is sent back once with the parse error; the final rejection is
// returned as the *cad.ParseError.
func (p *Planner) Plan(ctx context.Context, prompt string) (*cad.Program, error) {
	if p.client == nil {
		return nil, fmt.Errorf("planner unavailable")
	}
	request := BuildExtractionPrompt(ProgramSchema(), prompt)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tier := p.tier
		if attempt > 1 {
			tier = TierStandard
		}
		text, err := p.client.GenerateJSON(ctx, request, tier)
		if err != nil {
			return nil, fmt.Errorf("planner request failed: %w", err)
		}
		prog, err := cad.Parse([]byte(CleanJSONBlock(text)))
		if err == nil {
			log.WithFields(log.Fields{
				"instructions": prog.Len(),
				"attempt":      attempt,
			}).Info("planned parametric program")
			return prog, nil
		}
		var perr *cad.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("planned program rejected")
		request = withFeedback(request, text, err)
	}
	return nil, lastErr
}
