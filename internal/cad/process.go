package cad

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

const (
	// DefaultProcessTimeout bounds a single kernel invocation.
	DefaultProcessTimeout = 2 * time.Minute

	maxStderr = 2048
)

// ProcessKernel runs an external CAD binary. The program is written as JSON
// to its stdin and a binary or ASCII STL is read from its stdout. At most
// Concurrency invocations run at once.
type ProcessKernel struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	sem     *semaphore.Weighted
}

// NewProcessKernel returns a kernel that runs binary with at most concurrency
// simultaneous invocations.
func NewProcessKernel(binary string, concurrency int, timeout time.Duration, args ...string) *ProcessKernel {
	if concurrency <= 0 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &ProcessKernel{
		Binary:  binary,
		Args:    args,
		Timeout: timeout,
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

// Name returns "process:<binary>".
func (k *ProcessKernel) Name() string {
	return "process:" + filepath.Base(k.Binary)
}

// Availability reports whether the binary can be found.
func (k *ProcessKernel) Availability(context.Context) types.Availability {
	if k.Binary == "" {
		return types.Unavailable("no CAD kernel binary configured")
	}
	if _, err := exec.LookPath(k.Binary); err != nil {
		return types.Unavailable(fmt.Sprintf("CAD kernel binary %q not found", k.Binary))
	}
	return types.Available()
}

// Build waits for a free slot, then runs the binary under the kernel timeout.
func (k *ProcessKernel) Build(ctx context.Context, p *Program) (*mesh.Mesh, error) {
	if err := k.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer k.sem.Release(1)

	input, err := p.MarshalJSON()
	if err != nil {
		return nil, &BuildError{Kernel: k.Name(), Message: "failed to encode program", Cause: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, k.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, k.Binary, k.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	log.WithFields(log.Fields{
		"kernel":   k.Name(),
		"duration": time.Since(start).String(),
		"bytes":    stdout.Len(),
	}).Debug("CAD kernel process finished")

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &BuildError{Kernel: k.Name(), Message: fmt.Sprintf("timed out after %s", k.Timeout), Cause: ctxErr}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		msg := "process failed"
		if errors.As(runErr, &exitErr) {
			msg = fmt.Sprintf("process exited with status %d", exitErr.ExitCode())
		}
		if tail := stderrTail(stderr.String()); tail != "" {
			msg += ": " + tail
		}
		return nil, &BuildError{Kernel: k.Name(), Message: msg, Cause: runErr}
	}

	m, err := mesh.DecodeSTL(&stdout, mesh.ProvenanceParametric)
	if err != nil {
		return nil, &BuildError{Kernel: k.Name(), Message: "unreadable kernel output", Cause: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &BuildError{Kernel: k.Name(), Message: "kernel returned an invalid mesh", Cause: err}
	}
	return m, nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
