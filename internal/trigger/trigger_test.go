package trigger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

func plain(_ context.Context, v string) (string, error) { return v, nil }

func TestExecuteCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    types.BuildResult
	}{
		{"success", "true", types.ResultSuccess},
		{"non-zero exit", "exit 3", types.ResultFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExecuteCommand(context.Background(), &types.CommandBuildConfig{Command: tt.command})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteCommand_Empty(t *testing.T) {
	_, err := ExecuteCommand(context.Background(), &types.CommandBuildConfig{Command: "  "})
	assert.EqualError(t, err, "build command is empty")
}

func TestExecuteCommand_Dir(t *testing.T) {
	dir := t.TempDir()
	got, err := ExecuteCommand(context.Background(), &types.CommandBuildConfig{
		Command: `test "$(pwd -P)" = "$(cd ` + dir + ` && pwd -P)"`,
		Dir:     dir,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, got)
}

func TestExecuteCommand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := ExecuteCommand(ctx, &types.CommandBuildConfig{Command: "sleep 5"})
	require.NoError(t, err)
	assert.Equal(t, types.ResultAborted, got)
}

func TestExecuteHTTP_Status(t *testing.T) {
	tests := []struct {
		status int
		want   types.BuildResult
	}{
		{http.StatusOK, types.ResultSuccess},
		{http.StatusAccepted, types.ResultSuccess},
		{http.StatusNotFound, types.ResultFailure},
		{http.StatusInternalServerError, types.ResultFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			got, err := ExecuteHTTP(context.Background(), &types.HTTPBuildConfig{URL: srv.URL}, srv.Client(), plain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteHTTP_Request(t *testing.T) {
	t.Setenv("PREBUILD_TEST_BODY", "lib")
	var gotMethod, gotBody, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resolve := func(_ context.Context, v string) (string, error) { return "resolved-" + v, nil }
	_, err := ExecuteHTTP(context.Background(), &types.HTTPBuildConfig{
		Method:  http.MethodPut,
		URL:     srv.URL,
		Body:    `{"job":"${PREBUILD_TEST_BODY}"}`,
		Headers: map[string]string{"Authorization": "token"},
	}, srv.Client(), resolve)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, `{"job":"lib"}`, gotBody)
	assert.Equal(t, "resolved-token", gotAuth)
}

func TestExecuteHTTP_DefaultMethodIsPost(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	_, err := ExecuteHTTP(context.Background(), &types.HTTPBuildConfig{URL: srv.URL}, srv.Client(), plain)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestExecuteHTTP_HeaderResolveError(t *testing.T) {
	resolve := func(_ context.Context, _ string) (string, error) { return "", assert.AnError }
	_, err := ExecuteHTTP(context.Background(), &types.HTTPBuildConfig{
		URL:     "http://127.0.0.1:1",
		Headers: map[string]string{"X-Token": "secret://x"},
	}, http.DefaultClient, resolve)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving header X-Token")
}

func TestExecuteHTTP_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := ExecuteHTTP(context.Background(), &types.HTTPBuildConfig{URL: url}, http.DefaultClient, plain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build request failed")
}
