package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// EventLister is the part of a provider WaitForEvent reads.
type EventLister interface {
	ListEvents(ctx context.Context, jobName string, limit int) ([]types.Event, error)
}

// WaitForEvent polls until an event of the given kind exists for the job.
func WaitForEvent(t *testing.T, prov EventLister, jobName string, kind types.EventKind, timeout time.Duration) types.Event {
	t.Helper()
	var found types.Event
	WaitFor(t, timeout, func() bool {
		events, err := prov.ListEvents(context.Background(), jobName, 100)
		if err != nil {
			return false
		}
		for _, e := range events {
			if e.Kind == kind {
				found = e
				return true
			}
		}
		return false
	}, "event "+string(kind)+" for "+jobName)
	return found
}
