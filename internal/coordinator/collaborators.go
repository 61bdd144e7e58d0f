package coordinator

import (
	"context"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// BuildHandle is an awaitable reference to one upstream build. It is owned by
// the queue; the coordinator only reads it.
type BuildHandle interface {
	ID() string
	// Await blocks until the build finishes and returns its result. An error
	// means the build machinery itself failed or ctx ended, not that the build
	// produced a bad result.
	Await(ctx context.Context) (types.BuildResult, error)
}

// JobRegistry resolves job names.
type JobRegistry interface {
	// Resolve returns types.ErrJobNotFound (possibly wrapped) for unknown names.
	Resolve(ctx context.Context, name string) (types.JobRef, error)
	IsBuildable(ctx context.Context, ref types.JobRef) (bool, error)
}

// QueueService schedules builds and exposes builds that are queued or running.
type QueueService interface {
	IsInFlight(ctx context.Context, ref types.JobRef) (bool, error)
	ScheduleBuild(ctx context.Context, ref types.JobRef) (BuildHandle, error)
	// LookupInFlight returns nil, nil when no in-flight build can be found.
	LookupInFlight(ctx context.Context, ref types.JobRef) (BuildHandle, error)
}

// SCMPoller reports whether a job's source changed since the revision it was
// last built from.
type SCMPoller interface {
	// Poll must not record the revision it sees.
	Poll(ctx context.Context, ref types.JobRef) (types.PollResult, error)
	// Commit records revision as built by buildID. It is called only after
	// the queue accepted the build.
	Commit(ctx context.Context, ref types.JobRef, revision, buildID string) error
}

// ExecutorCapacity reports the size of the worker pool.
type ExecutorCapacity interface {
	TotalCapacity() int
}

// EventRecorder persists audit events. Recording is best-effort.
type EventRecorder interface {
	AppendEvent(ctx context.Context, event types.Event) error
}
