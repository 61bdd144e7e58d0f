package commands

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/internal/provider/memory"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

func TestNewProvider_Memory(t *testing.T) {
	p, err := newProvider(&types.ProjectConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Provider{}, p)
}

func TestNewProvider_DynamoDB(t *testing.T) {
	p, err := newProvider(&types.ProjectConfig{
		Provider: "dynamodb",
		DynamoDB: &types.DynamoDBConfig{TableName: "prebuild", Region: "us-east-1", Endpoint: "http://localhost:8000"},
	})
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = newProvider(&types.ProjectConfig{Provider: "dynamodb"})
	assert.ErrorContains(t, err, "dynamodb config is required")
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := newProvider(&types.ProjectConfig{Provider: "etcd"})
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "json", "warn")
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(io.Discard, "xml", "info")
	assert.ErrorContains(t, err, "invalid log format")
	_, err = newLogger(io.Discard, "text", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestShowJobStatus(t *testing.T) {
	ctx := context.Background()
	prov := memory.New()
	queued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, prov.PutBuild(ctx, types.BuildRecord{
		BuildID: "01J0000000000000000000000A", JobName: "app",
		Status: types.BuildCompleted, Result: types.ResultSuccess, QueuedAt: queued,
	}))
	require.NoError(t, prov.AppendEvent(ctx, types.Event{
		Kind: types.EventUpstreamScheduled, JobName: "app", Upstream: "lib",
		Status: "SCHEDULED", Timestamp: queued,
	}))

	var out bytes.Buffer
	require.NoError(t, showJobStatus(ctx, &out, prov, "app", 5))
	assert.Contains(t, out.String(), "01J0000000000000000000000A")
	assert.Contains(t, out.String(), "SUCCESS")
	assert.Contains(t, out.String(), "upstream=lib")

	out.Reset()
	require.NoError(t, showJobStatus(ctx, &out, prov, "lib", 5))
	assert.Contains(t, out.String(), "No recorded history.")
}

func TestResultColor(t *testing.T) {
	color.NoColor = false
	defer func() { color.NoColor = true }()

	assert.Equal(t, "\x1b[32mSUCCESS\x1b[0m", resultColor(types.ResultSuccess).Sprint("SUCCESS"))
	assert.Contains(t, resultColor(types.ResultUnstable).Sprint("UNSTABLE"), "\x1b[33m")
	assert.Contains(t, resultColor(types.ResultFailure).Sprint("FAILURE"), "\x1b[31m")
	assert.Contains(t, resultColor(types.ResultAborted).Sprint("ABORTED"), "\x1b[31m")
	assert.Contains(t, resultColor("-").Sprint("-"), "\x1b[2m")
}
