// Package testutil provides shared test utilities for prebuild.
package testutil

import (
	"fmt"
	"sync"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Jobs is an in-memory job source keyed by name.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*types.JobConfig
}

// NewJobs creates a job source holding the given jobs.
func NewJobs(jobs ...*types.JobConfig) *Jobs {
	j := &Jobs{jobs: make(map[string]*types.JobConfig, len(jobs))}
	for _, job := range jobs {
		j.Put(job)
	}
	return j
}

// Put adds or replaces a job.
func (j *Jobs) Put(job *types.JobConfig) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[job.Name] = job
}

// Get returns the named job or an error wrapping types.ErrJobNotFound.
func (j *Jobs) Get(name string) (*types.JobConfig, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", name, types.ErrJobNotFound)
	}
	return job, nil
}
