package types

import "time"

// BuildRecord is the persisted state of one build of a job.
type BuildRecord struct {
	BuildID    string                 `json:"buildId"`
	JobName    string                 `json:"jobName"`
	Status     BuildStatus            `json:"status"`
	Result     BuildResult            `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	QueuedAt   time.Time              `json:"queuedAt"`
	StartedAt  *time.Time             `json:"startedAt,omitempty"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
}

// Revision is the SCM revision a job was last scheduled to build. BuildID
// names that build; a baseline whose build never ran does not count.
type Revision struct {
	JobName   string    `json:"jobName"`
	Revision  string    `json:"revision"`
	BuildID   string    `json:"buildId,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// PollResult is the outcome of one SCM poll. Revision is the head that was
// seen; it is empty when the job has no SCM.
type PollResult struct {
	Outcome  PollOutcome
	Revision string
}

// HasChanges reports whether the poll found a revision not yet built.
func (r PollResult) HasChanges() bool { return r.Outcome.HasChanges() }

// Alert represents an alert event to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Category  FailureKind            `json:"alertType,omitempty"`
	JobName   string                 `json:"jobName,omitempty"`
	Upstream  string                 `json:"upstreamJob,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event is an append-only audit log entry recording a coordinator or queue decision.
type Event struct {
	Kind      EventKind              `json:"kind"`
	JobName   string                 `json:"jobName"`
	Upstream  string                 `json:"upstreamJob,omitempty"`
	BuildID   string                 `json:"buildId,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
