// Package types defines the public domain types for the prebuild dependency-trigger coordinator.
package types

import (
	"fmt"
	"strings"
)

// BuildResult is the outcome of a finished build. Results are ordered from
// best to worst: SUCCESS, UNSTABLE, FAILURE, NOT_BUILT, ABORTED.
type BuildResult string

// BuildResult values enumerate the possible build outcomes.
const (
	ResultSuccess  BuildResult = "SUCCESS"
	ResultUnstable BuildResult = "UNSTABLE"
	ResultFailure  BuildResult = "FAILURE"
	ResultNotBuilt BuildResult = "NOT_BUILT"
	ResultAborted  BuildResult = "ABORTED"
)

var resultOrdinals = map[BuildResult]int{
	ResultSuccess:  0,
	ResultUnstable: 1,
	ResultFailure:  2,
	ResultNotBuilt: 3,
	ResultAborted:  4,
}

// ParseBuildResult converts a case-insensitive name into a BuildResult.
func ParseBuildResult(s string) (BuildResult, error) {
	r := BuildResult(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := resultOrdinals[r]; !ok {
		return "", fmt.Errorf("unknown build result %q", s)
	}
	return r, nil
}

// Ordinal returns the rank of the result; lower is better. Unknown results
// rank below ABORTED.
func (r BuildResult) Ordinal() int {
	if o, ok := resultOrdinals[r]; ok {
		return o
	}
	return len(resultOrdinals)
}

// IsBetterThan reports whether r is strictly better than other.
func (r BuildResult) IsBetterThan(other BuildResult) bool {
	return r.Ordinal() < other.Ordinal()
}

// IsWorseThan reports whether r is strictly worse than other.
func (r BuildResult) IsWorseThan(other BuildResult) bool {
	return r.Ordinal() > other.Ordinal()
}

// PollOutcome is the result of polling a job's SCM for changes.
type PollOutcome string

// PollOutcome values.
const (
	PollChanges   PollOutcome = "CHANGES"
	PollNoChanges PollOutcome = "NO_CHANGES"
)

// HasChanges reports whether the poll found new revisions.
func (p PollOutcome) HasChanges() bool { return p == PollChanges }

// FailureKind classifies why the coordinator refused to let a primary job proceed.
type FailureKind string

// FailureKind values enumerate the terminal coordinator failures.
const (
	FailureInvalidConfig        FailureKind = "INVALID_CONFIG"
	FailureUnknownUpstream      FailureKind = "UNKNOWN_UPSTREAM_JOB"
	FailureSelfReferential      FailureKind = "SELF_REFERENTIAL"
	FailureUpstreamNotBuildable FailureKind = "UPSTREAM_NOT_BUILDABLE"
	FailureInsufficientCapacity FailureKind = "INSUFFICIENT_CAPACITY"
	FailureUpstreamAwaitError   FailureKind = "UPSTREAM_AWAIT_ERROR"
	FailureUpstreamBuildFailed  FailureKind = "UPSTREAM_BUILD_FAILED"
	FailureUpstreamWaitTimeout  FailureKind = "UPSTREAM_WAIT_TIMEOUT"
)

// BuildStatus represents the lifecycle state of a queued build.
type BuildStatus string

// BuildStatus values represent the lifecycle states of a build.
const (
	BuildQueued    BuildStatus = "QUEUED"
	BuildRunning   BuildStatus = "RUNNING"
	BuildCompleted BuildStatus = "COMPLETED"
	BuildErrored   BuildStatus = "ERRORED"
	BuildCancelled BuildStatus = "CANCELLED"
)

// TriggerType defines how a job's build is started.
type TriggerType string

// TriggerType values enumerate the supported build mechanisms.
const (
	TriggerHTTP          TriggerType = "http"
	TriggerCommand       TriggerType = "command"
	TriggerGlue          TriggerType = "glue"
	TriggerEMR           TriggerType = "emr"
	TriggerEMRServerless TriggerType = "emr-serverless"
	TriggerStepFunction  TriggerType = "step-function"
	TriggerLambda        TriggerType = "lambda"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// EventKind classifies the type of audit event.
type EventKind string

// EventKind values enumerate the categories of recorded events.
const (
	EventUpstreamSkipped   EventKind = "UPSTREAM_SKIPPED"
	EventUpstreamScheduled EventKind = "UPSTREAM_SCHEDULED"
	EventUpstreamReused    EventKind = "UPSTREAM_REUSED"
	EventUpstreamWaited    EventKind = "UPSTREAM_WAITED"
	EventPrebuildFailed    EventKind = "PREBUILD_FAILED"
	EventBuildQueued       EventKind = "BUILD_QUEUED"
	EventBuildFinished     EventKind = "BUILD_FINISHED"
)
