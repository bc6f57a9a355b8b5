package generator

import (
	"fmt"
	"time"
)

// VectorizationError indicates the vision capability produced nothing usable.
type VectorizationError struct {
	Message string
	Cause   error
}

func (e *VectorizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vectorization error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("vectorization error: %s", e.Message)
}

func (e *VectorizationError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *VectorizationError) Kind() string { return "VectorizationError" }

// GenerationError indicates a failed or disabled neural backend.
type GenerationError struct {
	Generator string
	Message   string
	Cause     error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation error (%s): %s: %v", e.Generator, e.Message, e.Cause)
	}
	return fmt.Sprintf("generation error (%s): %s", e.Generator, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *GenerationError) Kind() string { return "GenerationError" }

// GenerationTimeout indicates a generator or vision call exceeded its deadline.
type GenerationTimeout struct {
	Generator string
	Timeout   time.Duration
	Cause     error
}

func (e *GenerationTimeout) Error() string {
	return fmt.Sprintf("generation timeout (%s): no result after %s", e.Generator, e.Timeout)
}

func (e *GenerationTimeout) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *GenerationTimeout) Kind() string { return "GenerationTimeout" }

// ParametricBuildError indicates an invalid program or an unusable CAD kernel.
type ParametricBuildError struct {
	Message string
	Cause   error
}

func (e *ParametricBuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parametric build error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parametric build error: %s", e.Message)
}

func (e *ParametricBuildError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *ParametricBuildError) Kind() string { return "ParametricBuildError" }
