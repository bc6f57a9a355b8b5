package generator

import (
	"context"
	"errors"
	"time"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Parametric builds programs on a CAD kernel.
type Parametric struct {
	Kernel  cad.Kernel
	Timeout time.Duration
}

// NewParametric returns a parametric generator bounded by timeout.
func NewParametric(kernel cad.Kernel, timeout time.Duration) *Parametric {
	return &Parametric{Kernel: kernel, Timeout: timeout}
}

// Name returns "parametric".
func (p *Parametric) Name() string { return NameParametric }

// Availability mirrors the kernel.
func (p *Parametric) Availability(ctx context.Context) types.Availability {
	if p.Kernel == nil {
		return types.Unavailable("no CAD kernel configured")
	}
	return p.Kernel.Availability(ctx)
}

// Generate builds in.Program. The result is exact, so it needs no repair retries.
func (p *Parametric) Generate(ctx context.Context, in Input) (*Output, error) {
	if in.Program == nil || in.Program.Len() == 0 {
		return nil, &ParametricBuildError{Message: "no instructions supplied"}
	}
	if a := p.Availability(ctx); !a.OK {
		return nil, &ParametricBuildError{Message: "CAD kernel unavailable: " + a.Reason}
	}

	runCtx, cancel, d := withTimeout(ctx, p.Timeout)
	defer cancel()

	m, err := p.Kernel.Build(runCtx, in.Program)
	if err != nil {
		if derr := deadlineError(ctx, runCtx, p.Name(), d); derr != nil {
			return nil, derr
		}
		return nil, &ParametricBuildError{Message: "kernel " + p.Kernel.Name() + " failed", Cause: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &ParametricBuildError{Message: "kernel produced an invalid mesh", Cause: err}
	}
	return &Output{Mesh: m, Generator: p.Name(), Provider: p.Kernel.Name()}, nil
}

// ParseProgram parses instructions, reporting failures as ParametricBuildError.
func ParseProgram(data []byte) (*cad.Program, error) {
	prog, err := cad.Parse(data)
	if err != nil {
		return nil, &ParametricBuildError{Message: "invalid instructions", Cause: err}
	}
	return prog, nil
}

// Planner turns a natural-language prompt into a program.
type Planner interface {
	Name() string
	Availability(ctx context.Context) types.Availability
	Plan(ctx context.Context, prompt string) (*cad.Program, error)
}

// Plan runs the planner under timeout. A plan that fails to parse is a
// ParametricBuildError; any other planner failure is a GenerationError.
func Plan(ctx context.Context, planner Planner, prompt string, timeout time.Duration) (*cad.Program, error) {
	if a := planner.Availability(ctx); !a.OK {
		return nil, &GenerationError{Generator: planner.Name(), Message: "planner unavailable: " + a.Reason}
	}
	runCtx, cancel, d := withTimeout(ctx, timeout)
	defer cancel()

	prog, err := planner.Plan(runCtx, prompt)
	if err == nil {
		return prog, nil
	}
	if derr := deadlineError(ctx, runCtx, planner.Name(), d); derr != nil {
		return nil, derr
	}
	var pe *cad.ParseError
	if errors.As(err, &pe) {
		return nil, &ParametricBuildError{Message: "planner produced invalid instructions", Cause: err}
	}
	return nil, &GenerationError{Generator: planner.Name(), Message: "planning failed", Cause: err}
}
