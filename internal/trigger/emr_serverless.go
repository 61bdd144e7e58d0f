package trigger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/emrserverless"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emrserverless/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// EMRServerlessAPI is the subset of the AWS EMR Serverless client used by the trigger package.
type EMRServerlessAPI interface {
	StartJobRun(ctx context.Context, params *emrserverless.StartJobRunInput, optFns ...func(*emrserverless.Options)) (*emrserverless.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *emrserverless.GetJobRunInput, optFns ...func(*emrserverless.Options)) (*emrserverless.GetJobRunOutput, error)
}

// ExecuteEMRServerless starts a Spark job run on an EMR Serverless application.
func ExecuteEMRServerless(ctx context.Context, cfg *types.EMRServerlessBuildConfig, client EMRServerlessAPI) (map[string]interface{}, error) {
	if cfg.ApplicationID == "" {
		return nil, fmt.Errorf("emr-serverless build: applicationId is required")
	}
	if cfg.EntryPoint == "" {
		return nil, fmt.Errorf("emr-serverless build: entryPoint is required")
	}

	input := &emrserverless.StartJobRunInput{
		ApplicationId:    &cfg.ApplicationID,
		ExecutionRoleArn: &cfg.ExecutionRoleARN,
		JobDriver: &emrtypes.JobDriverMemberSparkSubmit{
			Value: emrtypes.SparkSubmit{EntryPoint: &cfg.EntryPoint},
		},
	}
	if cfg.JobName != "" {
		input.Name = &cfg.JobName
	}

	out, err := client.StartJobRun(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("emr-serverless build: StartJobRun failed: %w", err)
	}

	runID := ""
	if out.JobRunId != nil {
		runID = *out.JobRunId
	}
	return map[string]interface{}{
		"emr_sl_application_id": cfg.ApplicationID,
		"emr_sl_job_run_id":     runID,
	}, nil
}

func (r *Runner) checkEMRServerlessStatus(ctx context.Context, metadata map[string]interface{}) (StatusResult, error) {
	appID, _ := metadata["emr_sl_application_id"].(string)
	runID, _ := metadata["emr_sl_job_run_id"].(string)
	if appID == "" || runID == "" {
		return StatusResult{}, fmt.Errorf("emr-serverless status: missing application or run id")
	}

	client, err := r.getEMRServerlessClient()
	if err != nil {
		return StatusResult{}, fmt.Errorf("emr-serverless status: getting client: %w", err)
	}

	out, err := client.GetJobRun(ctx, &emrserverless.GetJobRunInput{
		ApplicationId: &appID,
		JobRunId:      &runID,
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("emr-serverless status: GetJobRun failed: %w", err)
	}
	if out.JobRun == nil {
		return StatusResult{}, fmt.Errorf("emr-serverless status: GetJobRun returned nil JobRun")
	}

	state := out.JobRun.State
	switch state {
	case emrtypes.JobRunStateSuccess:
		return succeeded(string(state)), nil
	case emrtypes.JobRunStateFailed:
		return failed(string(state), types.ResultFailure), nil
	case emrtypes.JobRunStateCancelled:
		return failed(string(state), types.ResultAborted), nil
	default:
		return running(string(state)), nil
	}
}
