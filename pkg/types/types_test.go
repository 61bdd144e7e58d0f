package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResult_Ordering(t *testing.T) {
	ordered := []BuildResult{ResultSuccess, ResultUnstable, ResultFailure, ResultNotBuilt, ResultAborted}
	for i, better := range ordered {
		for _, worse := range ordered[i+1:] {
			assert.True(t, better.IsBetterThan(worse), "%s should beat %s", better, worse)
			assert.True(t, worse.IsWorseThan(better), "%s should lose to %s", worse, better)
			assert.False(t, worse.IsBetterThan(better))
		}
		assert.False(t, better.IsBetterThan(better))
	}
}

func TestBuildResult_UnknownRanksLast(t *testing.T) {
	assert.True(t, BuildResult("WEIRD").IsWorseThan(ResultAborted))
	assert.False(t, BuildResult("").IsBetterThan(ResultFailure))
}

func TestParseBuildResult(t *testing.T) {
	r, err := ParseBuildResult(" unstable ")
	require.NoError(t, err)
	assert.Equal(t, ResultUnstable, r)

	_, err = ParseBuildResult("green")
	assert.Error(t, err)
}

func TestNewTriggerConfig(t *testing.T) {
	cfg, err := NewTriggerConfig("  lib ", true, false)
	require.NoError(t, err)
	assert.Equal(t, "lib", cfg.UpstreamJob)
	assert.True(t, cfg.Poll)
	assert.False(t, cfg.WaitForCompletion())
	assert.Equal(t, ResultFailure, cfg.Threshold())

	_, err = NewTriggerConfig("   ", false, true)
	assert.EqualError(t, err, "upstreamJob is required")
}

func TestTriggerConfig_Defaults(t *testing.T) {
	var cfg TriggerConfig
	assert.True(t, cfg.WaitForCompletion(), "wait defaults to true")
	assert.False(t, cfg.Poll, "poll defaults to false")
	assert.Equal(t, ResultFailure, cfg.Threshold())

	d, err := cfg.WaitTimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestTriggerConfig_NormalizeDoesNotAlias(t *testing.T) {
	wait := true
	orig := TriggerConfig{UpstreamJob: "lib", Wait: &wait}
	norm := orig.Normalize()
	*norm.Wait = false
	assert.True(t, *orig.Wait)
}

func TestTriggerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TriggerConfig
		wantErr string
	}{
		{"valid", TriggerConfig{UpstreamJob: "lib", WaitTimeout: "5m", FailThreshold: ResultUnstable}, ""},
		{"missing upstream", TriggerConfig{}, "upstreamJob is required"},
		{"bad timeout", TriggerConfig{UpstreamJob: "lib", WaitTimeout: "soon"}, "invalid waitTimeout"},
		{"negative timeout", TriggerConfig{UpstreamJob: "lib", WaitTimeout: "-1s"}, "must not be negative"},
		{"bad threshold", TriggerConfig{UpstreamJob: "lib", FailThreshold: "RED"}, "failThreshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTriggerConfig_WaitTimeoutDuration(t *testing.T) {
	d, err := TriggerConfig{WaitTimeout: "90s"}.WaitTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestJobConfig_Ref(t *testing.T) {
	ref := JobConfig{Name: "lib", Disabled: true}.Ref()
	assert.Equal(t, JobRef{Name: "lib", Disabled: true}, ref)
}

func TestTriggerConfig_NormalizeCanonicalizesThreshold(t *testing.T) {
	norm := TriggerConfig{UpstreamJob: "lib", FailThreshold: " unstable "}.Normalize()
	assert.Equal(t, ResultUnstable, norm.Threshold())
	assert.False(t, ResultUnstable.IsBetterThan(norm.Threshold()))
}
