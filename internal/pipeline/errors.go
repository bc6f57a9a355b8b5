package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
)

// StorageError reports a failed blob read or write.
type StorageError struct {
	Op    string
	Key   string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Kind returns the error kind recorded on the job.
func (e *StorageError) Kind() string { return jobs.KindStorage }

type kinded interface {
	Kind() string
}

// ErrorKind classifies err for the job record. Typed pipeline errors report
// their own kind; cancellation and deadlines of the job context are
// "Cancelled"; everything else is "InternalError".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return jobs.KindCancelled
	}
	return jobs.KindInternal
}
