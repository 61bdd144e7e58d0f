package trigger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

const defaultHTTPTimeout = 30 * time.Second

// ExecuteCommand runs a shell command build. Exit code 0 is SUCCESS, any
// other exit code is FAILURE, and a cancelled context is ABORTED.
func ExecuteCommand(ctx context.Context, cfg *types.CommandBuildConfig) (types.BuildResult, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return "", fmt.Errorf("build command is empty")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cfg.Command)
	cmd.Dir = cfg.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return types.ResultSuccess, nil
	}
	if ctx.Err() != nil {
		return types.ResultAborted, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return types.ResultFailure, nil
	}
	return "", fmt.Errorf("running build command: %w", err)
}

// ExecuteHTTP fires an HTTP build. A 2xx response is SUCCESS and any other
// status is FAILURE. Header values are expanded from the environment, or
// read from Secrets Manager when written as secret://<id>.
func ExecuteHTTP(ctx context.Context, cfg *types.HTTPBuildConfig, client *http.Client, resolve func(context.Context, string) (string, error)) (types.BuildResult, error) {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	timeout := defaultHTTPTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if cfg.Body != "" {
		body = bytes.NewBufferString(os.ExpandEnv(cfg.Body))
	}

	req, err := http.NewRequestWithContext(reqCtx, method, cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		resolved, err := resolve(ctx, v)
		if err != nil {
			return "", fmt.Errorf("resolving header %s: %w", k, err)
		}
		req.Header.Set(k, resolved)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.ResultAborted, nil
		}
		return "", fmt.Errorf("build request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.ResultFailure, nil
	}
	return types.ResultSuccess, nil
}
