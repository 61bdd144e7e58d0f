package providertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// TestEventAppendAndList verifies appending events and listing in chronological order.
func TestEventAppendAndList(t *testing.T, prov provider.Provider) {
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 5; i++ {
		ev := types.Event{
			Kind:      types.EventUpstreamScheduled,
			JobName:   "ct-event-al",
			Upstream:  "ct-upstream",
			BuildID:   fmt.Sprintf("build-%d", i),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, prov.AppendEvent(ctx, ev))
		// Small delay to ensure unique event ordering
		time.Sleep(5 * time.Millisecond)
	}

	events, err := prov.ListEvents(ctx, "ct-event-al", 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
	// Chronological: oldest first
	assert.Equal(t, "build-0", events[0].BuildID)
	assert.Equal(t, "build-4", events[4].BuildID)

	recent, err := prov.ListEvents(ctx, "ct-event-al", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "build-3", recent[0].BuildID)
	assert.Equal(t, "build-4", recent[1].BuildID)
}
