package queue

import (
	"context"
	"sync"
	"time"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Build is one build of a job, from queueing to its final status. Mutable
// fields are guarded by mu; result and err are final once done is closed.
type Build struct {
	id       string
	job      types.JobConfig
	queuedAt time.Time
	done     chan struct{}

	mu         sync.Mutex
	status     types.BuildStatus
	startedAt  *time.Time
	finishedAt *time.Time
	result     types.BuildResult
	meta       map[string]interface{}
	err        error
}

// ID returns the build's ULID.
func (b *Build) ID() string { return b.id }

// JobName returns the name of the job being built.
func (b *Build) JobName() string { return b.job.Name }

// Status returns the build's current lifecycle status.
func (b *Build) Status() types.BuildStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Done is closed when the build finishes.
func (b *Build) Done() <-chan struct{} { return b.done }

// Await blocks until the build finishes or ctx ends. A build that errored or
// was dropped returns its error.
func (b *Build) Await(ctx context.Context) (types.BuildResult, error) {
	select {
	case <-b.done:
		return b.result, b.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Record returns a snapshot of the build for storage.
func (b *Build) Record() types.BuildRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := types.BuildRecord{
		BuildID:    b.id,
		JobName:    b.job.Name,
		Status:     b.status,
		Result:     b.result,
		Metadata:   b.meta,
		QueuedAt:   b.queuedAt,
		StartedAt:  b.startedAt,
		FinishedAt: b.finishedAt,
	}
	if b.err != nil {
		rec.Error = b.err.Error()
	}
	return rec
}
