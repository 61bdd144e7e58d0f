// Package provider defines the storage backend interface for prebuild.
package provider

import (
	"context"
	"errors"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Provider is the storage backend interface. The in-memory provider serves
// single-process runs; DynamoDB keeps history across runs and hosts.
type Provider interface {
	// Build history
	PutBuild(ctx context.Context, rec types.BuildRecord) error
	GetBuild(ctx context.Context, buildID string) (*types.BuildRecord, error)
	ListBuilds(ctx context.Context, jobName string, limit int) ([]types.BuildRecord, error)

	// SCM poll state. GetRevision returns nil, nil when nothing was recorded.
	PutRevision(ctx context.Context, rev types.Revision) error
	GetRevision(ctx context.Context, jobName string) (*types.Revision, error)

	// Event log, append-only audit trail
	AppendEvent(ctx context.Context, event types.Event) error
	ListEvents(ctx context.Context, jobName string, limit int) ([]types.Event, error)

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
