// Package trigger executes job builds: local commands, HTTP calls, and AWS
// jobs (Glue, EMR, EMR Serverless, Step Functions, Lambda). Asynchronous AWS
// builds are started and then polled until they reach a terminal state.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emrserverless"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

const defaultPollInterval = 15 * time.Second

// Runner holds injectable AWS SDK clients and dispatches builds across all
// supported build types.
type Runner struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	awsCfg *aws.Config

	glueClient    GlueAPI
	emrClient     EMRAPI
	emrSLClient   EMRServerlessAPI
	sfnClient     SFNAPI
	lambdaClient  LambdaAPI
	secretsClient SecretsAPI
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithGlueClient sets a custom Glue client (useful for testing).
func WithGlueClient(c GlueAPI) RunnerOption {
	return func(r *Runner) { r.glueClient = c }
}

// WithEMRClient sets a custom EMR client.
func WithEMRClient(c EMRAPI) RunnerOption {
	return func(r *Runner) { r.emrClient = c }
}

// WithEMRServerlessClient sets a custom EMR Serverless client.
func WithEMRServerlessClient(c EMRServerlessAPI) RunnerOption {
	return func(r *Runner) { r.emrSLClient = c }
}

// WithSFNClient sets a custom Step Functions client.
func WithSFNClient(c SFNAPI) RunnerOption {
	return func(r *Runner) { r.sfnClient = c }
}

// WithLambdaClient sets a custom Lambda client.
func WithLambdaClient(c LambdaAPI) RunnerOption {
	return func(r *Runner) { r.lambdaClient = c }
}

// WithSecretsClient sets a custom Secrets Manager client.
func WithSecretsClient(c SecretsAPI) RunnerOption {
	return func(r *Runner) { r.secretsClient = c }
}

// WithHTTPClient sets a custom HTTP client for HTTP builds.
func WithHTTPClient(c *http.Client) RunnerOption {
	return func(r *Runner) { r.httpClient = c }
}

// WithLogger sets the logger used for build progress.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Build runs one build of job and blocks until it finishes. A build that ran
// and failed is reported through the BuildResult; an error means the build
// could not be started or tracked. A job without a build definition succeeds
// immediately.
func (r *Runner) Build(ctx context.Context, job types.JobConfig) (types.BuildResult, map[string]interface{}, error) {
	cfg := job.Build
	if cfg == nil {
		r.logger.Info("job has no build definition, nothing to run", "job", job.Name)
		return types.ResultSuccess, nil, nil
	}

	interval := defaultPollInterval
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil || d <= 0 {
			return "", nil, fmt.Errorf("invalid pollInterval %q", cfg.PollInterval)
		}
		interval = d
	}

	switch cfg.Type {
	case types.TriggerCommand:
		if cfg.Command == nil {
			return "", nil, fmt.Errorf("command build config is nil")
		}
		result, err := ExecuteCommand(ctx, cfg.Command)
		return result, nil, err
	case types.TriggerHTTP:
		if cfg.HTTP == nil {
			return "", nil, fmt.Errorf("http build config is nil")
		}
		result, err := ExecuteHTTP(ctx, cfg.HTTP, r.httpClient, r.resolveSecret)
		return result, nil, err
	case types.TriggerLambda:
		if cfg.Lambda == nil {
			return "", nil, fmt.Errorf("lambda build config is nil")
		}
		client, err := r.getLambdaClient()
		if err != nil {
			return "", nil, err
		}
		return ExecuteLambda(ctx, job.Name, cfg.Lambda, client)
	case types.TriggerGlue:
		if cfg.Glue == nil {
			return "", nil, fmt.Errorf("glue build config is nil")
		}
		client, err := r.getGlueClient()
		if err != nil {
			return "", nil, err
		}
		meta, err := ExecuteGlue(ctx, cfg.Glue, client)
		return r.track(ctx, job.Name, cfg.Type, meta, err, interval)
	case types.TriggerEMR:
		if cfg.EMR == nil {
			return "", nil, fmt.Errorf("emr build config is nil")
		}
		client, err := r.getEMRClient()
		if err != nil {
			return "", nil, err
		}
		meta, err := ExecuteEMR(ctx, cfg.EMR, client)
		return r.track(ctx, job.Name, cfg.Type, meta, err, interval)
	case types.TriggerEMRServerless:
		if cfg.EMRServerless == nil {
			return "", nil, fmt.Errorf("emr-serverless build config is nil")
		}
		client, err := r.getEMRServerlessClient()
		if err != nil {
			return "", nil, err
		}
		meta, err := ExecuteEMRServerless(ctx, cfg.EMRServerless, client)
		return r.track(ctx, job.Name, cfg.Type, meta, err, interval)
	case types.TriggerStepFunction:
		if cfg.StepFunction == nil {
			return "", nil, fmt.Errorf("step-function build config is nil")
		}
		client, err := r.getSFNClient()
		if err != nil {
			return "", nil, err
		}
		meta, err := ExecuteSFN(ctx, cfg.StepFunction, client)
		return r.track(ctx, job.Name, cfg.Type, meta, err, interval)
	default:
		return "", nil, fmt.Errorf("unknown build type: %s", cfg.Type)
	}
}

// CheckStatus checks a remote run identified by metadata from a start call.
func (r *Runner) CheckStatus(ctx context.Context, buildType types.TriggerType, metadata map[string]interface{}) (StatusResult, error) {
	switch buildType {
	case types.TriggerGlue:
		return r.checkGlueStatus(ctx, metadata)
	case types.TriggerEMR:
		return r.checkEMRStatus(ctx, metadata)
	case types.TriggerEMRServerless:
		return r.checkEMRServerlessStatus(ctx, metadata)
	case types.TriggerStepFunction:
		return r.checkSFNStatus(ctx, metadata)
	default:
		return StatusResult{}, fmt.Errorf("build type %s has no remote status", buildType)
	}
}

// maxStatusErrors is the number of consecutive failed status checks after
// which a remote build is considered lost.
const maxStatusErrors = 3

// track polls a started remote run until it is terminal. Cancelling ctx
// stops tracking and reports ABORTED; the remote run is left alone.
func (r *Runner) track(ctx context.Context, job string, buildType types.TriggerType, meta map[string]interface{}, startErr error, interval time.Duration) (types.BuildResult, map[string]interface{}, error) {
	if startErr != nil {
		return "", nil, startErr
	}
	r.logger.Info("remote build started", "job", job, "type", buildType, "metadata", meta)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var statusErrs int
	for {
		select {
		case <-ctx.Done():
			r.logger.Warn("stopped tracking remote build", "job", job, "type", buildType, "error", ctx.Err())
			return types.ResultAborted, meta, nil
		case <-timer.C:
		}

		status, err := r.CheckStatus(ctx, buildType, meta)
		if err != nil {
			statusErrs++
			r.logger.Warn("status check failed", "job", job, "type", buildType, "attempt", statusErrs, "error", err)
			if statusErrs >= maxStatusErrors {
				return "", meta, fmt.Errorf("tracking %s build of %q: %w", buildType, job, err)
			}
			timer.Reset(interval)
			continue
		}
		statusErrs = 0

		if status.Terminal() {
			r.logger.Info("remote build finished", "job", job, "type", buildType, "state", status.Message, "result", status.Result)
			return status.Result, meta, nil
		}
		timer.Reset(interval)
	}
}

func (r *Runner) loadAWSConfig() (aws.Config, error) {
	if r.awsCfg != nil {
		return *r.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	r.awsCfg = &cfg
	return cfg, nil
}

func (r *Runner) getGlueClient() (GlueAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.glueClient != nil {
		return r.glueClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.glueClient = glue.NewFromConfig(cfg)
	return r.glueClient, nil
}

func (r *Runner) getEMRClient() (EMRAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emrClient != nil {
		return r.emrClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.emrClient = emr.NewFromConfig(cfg)
	return r.emrClient, nil
}

func (r *Runner) getEMRServerlessClient() (EMRServerlessAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emrSLClient != nil {
		return r.emrSLClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.emrSLClient = emrserverless.NewFromConfig(cfg)
	return r.emrSLClient, nil
}

func (r *Runner) getSFNClient() (SFNAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sfnClient != nil {
		return r.sfnClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.sfnClient = sfn.NewFromConfig(cfg)
	return r.sfnClient, nil
}

func (r *Runner) getLambdaClient() (LambdaAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lambdaClient != nil {
		return r.lambdaClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.lambdaClient = lambda.NewFromConfig(cfg)
	return r.lambdaClient, nil
}

func (r *Runner) getSecretsClient() (SecretsAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secretsClient != nil {
		return r.secretsClient, nil
	}
	cfg, err := r.loadAWSConfig()
	if err != nil {
		return nil, err
	}
	r.secretsClient = secretsmanager.NewFromConfig(cfg)
	return r.secretsClient, nil
}
