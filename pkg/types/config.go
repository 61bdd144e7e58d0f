package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TriggerConfig is the pre-build dependency configuration attached to a
// primary job. It is a value: the coordinator receives a copy and never
// mutates it, and reconfiguration replaces the whole value.
type TriggerConfig struct {
	UpstreamJob   string      `yaml:"upstreamJob" json:"upstreamJob"`
	Poll          bool        `yaml:"poll,omitempty" json:"poll,omitempty"`
	Wait          *bool       `yaml:"wait,omitempty" json:"wait,omitempty"`                   // nil = true
	WaitTimeout   string      `yaml:"waitTimeout,omitempty" json:"waitTimeout,omitempty"`     // e.g. "30m"; empty = unbounded
	FailThreshold BuildResult `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"` // default FAILURE
}

// NewTriggerConfig builds a validated TriggerConfig.
func NewTriggerConfig(upstreamJob string, poll, wait bool) (TriggerConfig, error) {
	cfg := TriggerConfig{
		UpstreamJob: upstreamJob,
		Poll:        poll,
		Wait:        &wait,
	}.Normalize()
	if err := cfg.Validate(); err != nil {
		return TriggerConfig{}, err
	}
	return cfg, nil
}

// Normalize returns a copy with the upstream name trimmed and defaults applied.
func (c TriggerConfig) Normalize() TriggerConfig {
	c.UpstreamJob = strings.TrimSpace(c.UpstreamJob)
	if c.Wait != nil {
		w := *c.Wait
		c.Wait = &w
	}
	if r, err := ParseBuildResult(string(c.FailThreshold)); err == nil {
		c.FailThreshold = r
	} else if c.FailThreshold == "" {
		c.FailThreshold = ResultFailure
	}
	return c
}

// WaitForCompletion reports whether the primary job blocks on the upstream build.
func (c TriggerConfig) WaitForCompletion() bool {
	return c.Wait == nil || *c.Wait
}

// Threshold returns the result the upstream build must beat.
func (c TriggerConfig) Threshold() BuildResult {
	if c.FailThreshold == "" {
		return ResultFailure
	}
	return c.FailThreshold
}

// WaitTimeoutDuration parses WaitTimeout. Zero means wait without bound.
func (c TriggerConfig) WaitTimeoutDuration() (time.Duration, error) {
	if c.WaitTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid waitTimeout %q: %w", c.WaitTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("waitTimeout must not be negative: %s", c.WaitTimeout)
	}
	return d, nil
}

// Validate checks the static shape of the configuration.
func (c TriggerConfig) Validate() error {
	if strings.TrimSpace(c.UpstreamJob) == "" {
		return errors.New("upstreamJob is required")
	}
	if _, err := c.WaitTimeoutDuration(); err != nil {
		return err
	}
	if c.FailThreshold != "" {
		if _, err := ParseBuildResult(string(c.FailThreshold)); err != nil {
			return fmt.Errorf("failThreshold: %w", err)
		}
	}
	return nil
}

// BuildConfig defines how a job is built.
type BuildConfig struct {
	Type          TriggerType               `yaml:"type" json:"type"`
	Command       *CommandBuildConfig       `yaml:"command,omitempty" json:"command,omitempty"`
	HTTP          *HTTPBuildConfig          `yaml:"http,omitempty" json:"http,omitempty"`
	Glue          *GlueBuildConfig          `yaml:"glue,omitempty" json:"glue,omitempty"`
	EMR           *EMRBuildConfig           `yaml:"emr,omitempty" json:"emr,omitempty"`
	EMRServerless *EMRServerlessBuildConfig `yaml:"emrServerless,omitempty" json:"emrServerless,omitempty"`
	StepFunction  *StepFunctionBuildConfig  `yaml:"stepFunction,omitempty" json:"stepFunction,omitempty"`
	Lambda        *LambdaBuildConfig        `yaml:"lambda,omitempty" json:"lambda,omitempty"`
	PollInterval  string                    `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"` // status poll cadence for async builds
}

// CommandBuildConfig runs a shell command; exit code 0 is SUCCESS.
type CommandBuildConfig struct {
	Command string `yaml:"command" json:"command"`
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// HTTPBuildConfig fires an HTTP request; 2xx is SUCCESS.
type HTTPBuildConfig struct {
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // values may be "secret://<id>"
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
	Timeout int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds
}

// GlueBuildConfig starts an AWS Glue job run.
type GlueBuildConfig struct {
	JobName   string            `yaml:"jobName" json:"jobName"`
	Arguments map[string]string `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// EMRBuildConfig adds a step to an existing EMR cluster.
type EMRBuildConfig struct {
	ClusterID string            `yaml:"clusterId" json:"clusterId"`
	StepName  string            `yaml:"stepName" json:"stepName"`
	Jar       string            `yaml:"jar" json:"jar"`
	Arguments map[string]string `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// EMRServerlessBuildConfig starts an EMR Serverless job run.
type EMRServerlessBuildConfig struct {
	ApplicationID    string `yaml:"applicationId" json:"applicationId"`
	JobName          string `yaml:"jobName" json:"jobName"`
	ExecutionRoleARN string `yaml:"executionRoleArn" json:"executionRoleArn"`
	EntryPoint       string `yaml:"entryPoint" json:"entryPoint"`
}

// StepFunctionBuildConfig starts a Step Functions execution.
type StepFunctionBuildConfig struct {
	StateMachineARN string            `yaml:"stateMachineArn" json:"stateMachineArn"`
	Arguments       map[string]string `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// LambdaBuildConfig invokes a Lambda function synchronously.
type LambdaBuildConfig struct {
	FunctionName string `yaml:"functionName" json:"functionName"`
	Payload      string `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// SCMConfig locates the source a job is built from.
type SCMConfig struct {
	Repository string `yaml:"repository" json:"repository"`
	Ref        string `yaml:"ref,omitempty" json:"ref,omitempty"` // default "HEAD"
}

// JobConfig is the full definition of a registered job.
type JobConfig struct {
	Name     string         `yaml:"name" json:"name"`
	Disabled bool           `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	SCM      *SCMConfig     `yaml:"scm,omitempty" json:"scm,omitempty"`
	Build    *BuildConfig   `yaml:"build,omitempty" json:"build,omitempty"`
	Prebuild *TriggerConfig `yaml:"prebuild,omitempty" json:"prebuild,omitempty"`
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type         AlertType `yaml:"type" json:"type"`
	URL          string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path         string    `yaml:"path,omitempty" json:"path,omitempty"`
	EventBusName string    `yaml:"eventBusName,omitempty" json:"eventBusName,omitempty"`
	Source       string    `yaml:"source,omitempty" json:"source,omitempty"`
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName    string `yaml:"tableName" json:"tableName"`
	Region       string `yaml:"region" json:"region"`
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	RetentionTTL string `yaml:"retentionTtl,omitempty" json:"retentionTtl,omitempty"`
	CreateTable  bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// SCMPollConfig tunes the SCM poller's circuit breaker.
type SCMPollConfig struct {
	Timeout       string `yaml:"timeout,omitempty" json:"timeout,omitempty"`             // per probe, default "30s"
	FailThreshold int    `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"` // consecutive failures, default 5
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`           // open duration, default "30s"
}

// ProjectConfig represents the top-level prebuild.yaml configuration.
type ProjectConfig struct {
	Provider     string           `yaml:"provider"`
	Executors    int              `yaml:"executors"`
	JobDirs      []string         `yaml:"jobDirs"`
	RejectCycles bool             `yaml:"rejectCycles,omitempty"`
	DynamoDB     *DynamoDBConfig  `yaml:"dynamodb,omitempty"`
	SCM          *SCMPollConfig   `yaml:"scm,omitempty"`
	Alerts       []AlertConfig    `yaml:"alerts,omitempty"`
	Telemetry    *TelemetryConfig `yaml:"telemetry,omitempty"`
}
