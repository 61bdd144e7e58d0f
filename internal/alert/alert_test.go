package alert

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		Category:  types.FailureUpstreamBuildFailed,
		JobName:   "app",
		Upstream:  "lib",
		Message:   `upstream job "lib" failed to build`,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	assert.Equal(t, "console", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))

	line := buf.String()
	assert.Contains(t, line, "[ERROR]")
	assert.Contains(t, line, "[app]")
	assert.Contains(t, line, string(types.FailureUpstreamBuildFailed))
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestConsoleSink_Levels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	a := testAlert()
	a.Level = types.AlertLevelWarning
	require.NoError(t, sink.Send(context.Background(), a))
	assert.Contains(t, buf.String(), "[WARN]")

	buf.Reset()
	a.Level = types.AlertLevelInfo
	require.NoError(t, sink.Send(context.Background(), a))
	assert.Contains(t, buf.String(), "[INFO]")
}

func TestDispatcher_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDispatcher([]types.AlertConfig{{Type: types.AlertConsole}}, WithConsoleOutput(&buf))
	require.NoError(t, err)

	d.Dispatch(context.Background(), testAlert())
	assert.Contains(t, buf.String(), testAlert().Message)
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	require.NoError(t, sink.Send(context.Background(), testAlert()))

	var got types.Alert
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, "app", got.JobName)
	assert.Equal(t, types.FailureUpstreamBuildFailed, got.Category)
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Send(context.Background(), testAlert())
	assert.ErrorContains(t, err, "status 502")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, testAlert()))
	require.NoError(t, sink.Send(ctx, testAlert()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a types.Alert
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &a))
		assert.Equal(t, "lib", a.Upstream)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileSink_Unwritable(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "alerts.jsonl"))
	assert.ErrorContains(t, err, "opening alert file")
}

type mockEventBridge struct {
	in  *eventbridge.PutEventsInput
	out *eventbridge.PutEventsOutput
	err error
}

func (m *mockEventBridge) PutEvents(_ context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.in = params
	if m.err != nil {
		return nil, m.err
	}
	if m.out == nil {
		return &eventbridge.PutEventsOutput{}, nil
	}
	return m.out, nil
}

func TestEventBridgeSink_Send(t *testing.T) {
	client := &mockEventBridge{}
	sink, err := NewEventBridgeSink("ci-bus", "", WithEventBridgeSinkClient(client))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, client.in.Entries, 1)
	e := client.in.Entries[0]
	assert.Equal(t, "ci-bus", aws.ToString(e.EventBusName))
	assert.Equal(t, "prebuild", aws.ToString(e.Source))
	assert.Equal(t, "Prebuild Alert", aws.ToString(e.DetailType))
	assert.Equal(t, testAlert().Timestamp, aws.ToTime(e.Time))

	var detail types.Alert
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(e.Detail)), &detail))
	assert.Equal(t, "app", detail.JobName)
}

func TestEventBridgeSink_Errors(t *testing.T) {
	_, err := NewEventBridgeSink("", "", WithEventBridgeSinkClient(&mockEventBridge{}))
	assert.ErrorContains(t, err, "event bus name required")

	sink, err := NewEventBridgeSink("bus", "ci", WithEventBridgeSinkClient(&mockEventBridge{err: assert.AnError}))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), testAlert()), "putting event on bus")

	rejected := &mockEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []ebtypes.PutEventsResultEntry{{ErrorCode: aws.String("AccessDenied"), ErrorMessage: aws.String("no")}},
	}}
	sink, err = NewEventBridgeSink("bus", "ci", WithEventBridgeSinkClient(rejected))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), testAlert()), "AccessDenied")
}

type countingSink struct {
	name string
	err  error
	sent []types.Alert
}

func (s *countingSink) Name() string { return s.name }

func (s *countingSink) Send(_ context.Context, a types.Alert) error {
	s.sent = append(s.sent, a)
	return s.err
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	var logs bytes.Buffer
	d, err := NewDispatcher(nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	failing := &countingSink{name: "broken", err: assert.AnError}
	ok := &countingSink{name: "ok"}
	d.AddSink(failing)
	d.AddSink(ok)

	d.AlertFunc()(context.Background(), testAlert())
	assert.Len(t, failing.sent, 1)
	assert.Len(t, ok.sent, 1)
	assert.Contains(t, logs.String(), "sink=broken")
}

func TestNewDispatcher_Configs(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDispatcher([]types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertFile, Path: filepath.Join(dir, "a.jsonl")},
		{Type: types.AlertWebhook, URL: "http://localhost:9/hook"},
		{Type: types.AlertEventBridge, EventBusName: "bus"},
	}, WithEventBridgeClient(&mockEventBridge{}))
	require.NoError(t, err)
	assert.Len(t, d.sinks, 4)
}

func TestNewDispatcher_InvalidConfigs(t *testing.T) {
	tests := []struct {
		cfg     types.AlertConfig
		wantErr string
	}{
		{types.AlertConfig{Type: types.AlertWebhook}, "webhook URL required"},
		{types.AlertConfig{Type: types.AlertFile}, "file path required"},
		{types.AlertConfig{Type: types.AlertEventBridge}, "event bus name required"},
		{types.AlertConfig{Type: "pager"}, `unknown alert type "pager"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.cfg.Type), func(t *testing.T) {
			_, err := NewDispatcher([]types.AlertConfig{tt.cfg}, WithEventBridgeClient(&mockEventBridge{}))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
