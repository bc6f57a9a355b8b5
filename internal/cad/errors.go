package cad

import "fmt"

// ParseError reports an invalid program. Index is the offending instruction,
// or -1 when the document as a whole is rejected.
type ParseError struct {
	Index int
	Tag   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid program: %v", e.Err)
	}
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Tag, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// BuildError reports a kernel that could not turn a valid program into a solid.
type BuildError struct {
	Kernel  string
	Message string
	Cause   error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s kernel: %s: %v", e.Kernel, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s kernel: %s", e.Kernel, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}
