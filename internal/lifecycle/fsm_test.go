package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.BuildStatus
		to    types.BuildStatus
		valid bool
	}{
		{types.BuildQueued, types.BuildRunning, true},
		{types.BuildQueued, types.BuildCancelled, true},
		{types.BuildQueued, types.BuildCompleted, false},
		{types.BuildQueued, types.BuildErrored, false},
		{types.BuildRunning, types.BuildCompleted, true},
		{types.BuildRunning, types.BuildErrored, true},
		{types.BuildRunning, types.BuildCancelled, true},
		{types.BuildRunning, types.BuildQueued, false},
		{types.BuildCompleted, types.BuildRunning, false},
		{types.BuildErrored, types.BuildQueued, false},
		{types.BuildCancelled, types.BuildRunning, false},
		{"BOGUS", types.BuildRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.BuildCompleted))
	assert.True(t, IsTerminal(types.BuildErrored))
	assert.True(t, IsTerminal(types.BuildCancelled))
	assert.False(t, IsTerminal(types.BuildQueued))
	assert.False(t, IsTerminal(types.BuildRunning))
}

func TestIsInFlight(t *testing.T) {
	assert.True(t, IsInFlight(types.BuildQueued))
	assert.True(t, IsInFlight(types.BuildRunning))
	assert.False(t, IsInFlight(types.BuildCompleted))
	assert.False(t, IsInFlight(types.BuildCancelled))
}
