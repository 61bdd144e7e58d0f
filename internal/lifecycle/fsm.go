// Package lifecycle implements the queued build state machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// A build leaves the queue only by starting or by being cancelled. Once
// running it ends COMPLETED (with any BuildResult) or ERRORED when the
// builder itself broke.
var validTransitions = map[types.BuildStatus][]types.BuildStatus{
	types.BuildQueued:    {types.BuildRunning, types.BuildCancelled},
	types.BuildRunning:   {types.BuildCompleted, types.BuildErrored, types.BuildCancelled},
	types.BuildCompleted: {},
	types.BuildErrored:   {},
	types.BuildCancelled: {},
}

// CanTransition checks if moving a build from one status to another is valid.
func CanTransition(from, to types.BuildStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns an error if the move is not allowed.
func Transition(from, to types.BuildStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid build transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the build will not change status again.
func IsTerminal(status types.BuildStatus) bool {
	return status == types.BuildCompleted || status == types.BuildErrored || status == types.BuildCancelled
}

// IsInFlight returns true while a build is queued or running.
func IsInFlight(status types.BuildStatus) bool {
	return status == types.BuildQueued || status == types.BuildRunning
}
