package trigger

import "github.com/dwsmith1983/prebuild/pkg/types"

// RunCheckState represents the normalized outcome of a run status check.
type RunCheckState string

const (
	RunCheckRunning   RunCheckState = "running"
	RunCheckSucceeded RunCheckState = "succeeded"
	RunCheckFailed    RunCheckState = "failed"
)

// StatusResult is the normalized result from checking a remote run.
type StatusResult struct {
	State   RunCheckState
	Message string            // original provider state for logging
	Result  types.BuildResult // set once State is terminal
}

func succeeded(msg string) StatusResult {
	return StatusResult{State: RunCheckSucceeded, Message: msg, Result: types.ResultSuccess}
}

func failed(msg string, result types.BuildResult) StatusResult {
	return StatusResult{State: RunCheckFailed, Message: msg, Result: result}
}

func running(msg string) StatusResult {
	return StatusResult{State: RunCheckRunning, Message: msg}
}

// Terminal reports whether the remote run has finished.
func (s StatusResult) Terminal() bool {
	return s.State != RunCheckRunning
}
