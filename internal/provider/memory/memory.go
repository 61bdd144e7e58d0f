// Package memory implements an in-process Provider. State lives for the
// lifetime of the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*Provider)(nil)

// Provider is a mutex-guarded in-memory store.
type Provider struct {
	mu        sync.Mutex
	builds    map[string]types.BuildRecord
	jobBuilds map[string][]string // job -> build IDs in insertion order
	revisions map[string]types.Revision
	events    map[string][]types.Event
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{
		builds:    make(map[string]types.BuildRecord),
		jobBuilds: make(map[string][]string),
		revisions: make(map[string]types.Revision),
		events:    make(map[string][]types.Event),
	}
}

// PutBuild inserts or replaces a build record.
func (p *Provider) PutBuild(_ context.Context, rec types.BuildRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.builds[rec.BuildID]; !exists {
		p.jobBuilds[rec.JobName] = append(p.jobBuilds[rec.JobName], rec.BuildID)
	}
	p.builds[rec.BuildID] = copyBuild(rec)
	return nil
}

// GetBuild returns a copy of the build, or provider.ErrNotFound.
func (p *Provider) GetBuild(_ context.Context, buildID string) (*types.BuildRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.builds[buildID]
	if !ok {
		return nil, fmt.Errorf("build %q: %w", buildID, provider.ErrNotFound)
	}
	rec = copyBuild(rec)
	return &rec, nil
}

// ListBuilds returns the job's builds, newest first.
func (p *Provider) ListBuilds(_ context.Context, jobName string, limit int) ([]types.BuildRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.jobBuilds[jobName]
	result := make([]types.BuildRecord, 0, len(ids))
	for _, id := range ids {
		result = append(result, copyBuild(p.builds[id]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].QueuedAt.After(result[j].QueuedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PutRevision replaces the job's revision baseline.
func (p *Provider) PutRevision(_ context.Context, rev types.Revision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revisions[rev.JobName] = rev
	return nil
}

// GetRevision returns the job's revision baseline, or nil if none was recorded.
func (p *Provider) GetRevision(_ context.Context, jobName string) (*types.Revision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rev, ok := p.revisions[jobName]
	if !ok {
		return nil, nil
	}
	return &rev, nil
}

// AppendEvent records an event under its job.
func (p *Provider) AppendEvent(_ context.Context, event types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[event.JobName] = append(p.events[event.JobName], event)
	return nil
}

// ListEvents returns the job's most recent events in chronological order.
func (p *Provider) ListEvents(_ context.Context, jobName string, limit int) ([]types.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := p.events[jobName]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]types.Event(nil), all...), nil
}

// Start is a no-op.
func (p *Provider) Start(_ context.Context) error { return nil }

// Stop is a no-op; state is kept until the process exits.
func (p *Provider) Stop(_ context.Context) error { return nil }

// Ping always succeeds.
func (p *Provider) Ping(_ context.Context) error { return nil }

func copyBuild(rec types.BuildRecord) types.BuildRecord {
	if rec.Metadata != nil {
		m := make(map[string]interface{}, len(rec.Metadata))
		for k, v := range rec.Metadata {
			m[k] = v
		}
		rec.Metadata = m
	}
	return rec
}
