// Package repair cleans and simplifies meshes and runs the quality-gated retry loop.
package repair

import "fmt"

// MeshProcessingError reports a structurally invalid mesh handed to the repair stage.
type MeshProcessingError struct {
	Message string
	Cause   error
}

func (e *MeshProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mesh processing error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("mesh processing error: %s", e.Message)
}

func (e *MeshProcessingError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *MeshProcessingError) Kind() string { return "MeshProcessingError" }
