package types

import "errors"

// ErrJobNotFound is returned when a job name does not resolve to a registered job.
var ErrJobNotFound = errors.New("job not found")

// JobRef is a resolved handle to a registered job. Name is the job's full
// name and its identity.
type JobRef struct {
	Name     string `json:"name"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Ref returns the JobRef describing a job definition.
func (j JobConfig) Ref() JobRef {
	return JobRef{Name: j.Name, Disabled: j.Disabled}
}
