package registry

import (
	"fmt"
	"strings"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// ValidateJob checks that a job definition is well-formed. It does not check
// that the upstream job exists; references are resolved when a build runs.
func ValidateJob(job *types.JobConfig) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.SCM != nil && job.SCM.Repository == "" {
		return fmt.Errorf("scm.repository is required")
	}
	if job.Build != nil {
		if err := validateBuild(job.Build); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}
	if job.Prebuild != nil {
		if err := job.Prebuild.Validate(); err != nil {
			return fmt.Errorf("prebuild: %w", err)
		}
	}
	return nil
}

func validateBuild(b *types.BuildConfig) error {
	missing := func(field string) error {
		return fmt.Errorf("%s build requires %s", b.Type, field)
	}
	switch b.Type {
	case types.TriggerCommand:
		if b.Command == nil || strings.TrimSpace(b.Command.Command) == "" {
			return missing("command.command")
		}
	case types.TriggerHTTP:
		if b.HTTP == nil || b.HTTP.URL == "" {
			return missing("http.url")
		}
	case types.TriggerGlue:
		if b.Glue == nil || b.Glue.JobName == "" {
			return missing("glue.jobName")
		}
	case types.TriggerEMR:
		if b.EMR == nil || b.EMR.ClusterID == "" || b.EMR.Jar == "" {
			return missing("emr.clusterId and emr.jar")
		}
	case types.TriggerEMRServerless:
		if b.EMRServerless == nil || b.EMRServerless.ApplicationID == "" || b.EMRServerless.EntryPoint == "" {
			return missing("emrServerless.applicationId and emrServerless.entryPoint")
		}
	case types.TriggerStepFunction:
		if b.StepFunction == nil || b.StepFunction.StateMachineARN == "" {
			return missing("stepFunction.stateMachineArn")
		}
	case types.TriggerLambda:
		if b.Lambda == nil || b.Lambda.FunctionName == "" {
			return missing("lambda.functionName")
		}
	case "":
		return fmt.Errorf("build type is required")
	default:
		return fmt.Errorf("unsupported build type %q", b.Type)
	}
	return nil
}
