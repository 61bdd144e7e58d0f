// Package registry holds job definitions loaded from YAML files and resolves
// job names for the pre-build coordinator.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// NoSuchProject is the validation message for an unknown upstream name.
const NoSuchProject = "No such project"

// Registry manages job definitions. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*types.JobConfig
}

// NewRegistry creates a new empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*types.JobConfig),
	}
}

// LoadDir loads all YAML job files from a directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading job dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := r.LoadFile(path); err != nil {
			return fmt.Errorf("loading job %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile loads a single job YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var job types.JobConfig
	if err := yaml.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return r.Register(&job)
}

// Register validates a job and adds it to the registry, replacing any job
// with the same name.
func (r *Registry) Register(job *types.JobConfig) error {
	job.Name = strings.TrimSpace(job.Name)
	if err := ValidateJob(job); err != nil {
		return fmt.Errorf("validating job %q: %w", job.Name, err)
	}
	r.mu.Lock()
	r.jobs[job.Name] = job
	r.mu.Unlock()
	return nil
}

// Get returns a job definition by name.
func (r *Registry) Get(name string) (*types.JobConfig, error) {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %q: %w", name, types.ErrJobNotFound)
	}
	return job, nil
}

// List returns all registered jobs sorted by name.
func (r *Registry) List() []*types.JobConfig {
	r.mu.RLock()
	result := make([]*types.JobConfig, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns the full names of all registered jobs, sorted.
func (r *Registry) Names() []string {
	jobs := r.List()
	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}
	return names
}

// Resolve looks up a job by its full name.
func (r *Registry) Resolve(_ context.Context, name string) (types.JobRef, error) {
	job, err := r.Get(name)
	if err != nil {
		return types.JobRef{}, err
	}
	return job.Ref(), nil
}

// IsBuildable reports whether the job exists and is not disabled. The
// definition is re-read so a job disabled after resolution is reported
// accurately.
func (r *Registry) IsBuildable(_ context.Context, ref types.JobRef) (bool, error) {
	job, err := r.Get(ref.Name)
	if err != nil {
		return false, err
	}
	return !job.Disabled, nil
}

// CheckUpstream validates an upstream name as typed into a job definition.
// It returns an empty string when the name is blank or resolves; blank names
// are rejected by TriggerConfig.Validate instead.
func (r *Registry) CheckUpstream(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if _, err := r.Get(name); err != nil {
		return NoSuchProject
	}
	return ""
}

// Complete returns the sorted full names that start with prefix.
func (r *Registry) Complete(prefix string) []string {
	var matches []string
	for _, name := range r.Names() {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}
