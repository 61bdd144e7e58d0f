package trigger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// GlueAPI is the subset of the AWS Glue client used by the trigger package.
type GlueAPI interface {
	StartJobRun(ctx context.Context, params *glue.StartJobRunInput, optFns ...func(*glue.Options)) (*glue.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *glue.GetJobRunInput, optFns ...func(*glue.Options)) (*glue.GetJobRunOutput, error)
}

// ExecuteGlue starts an AWS Glue job run.
func ExecuteGlue(ctx context.Context, cfg *types.GlueBuildConfig, client GlueAPI) (map[string]interface{}, error) {
	if cfg.JobName == "" {
		return nil, fmt.Errorf("glue build: jobName is required")
	}

	out, err := client.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   &cfg.JobName,
		Arguments: cfg.Arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("glue build: StartJobRun failed: %w", err)
	}

	runID := ""
	if out.JobRunId != nil {
		runID = *out.JobRunId
	}
	return map[string]interface{}{
		"glue_job_name":   cfg.JobName,
		"glue_job_run_id": runID,
	}, nil
}

func (r *Runner) checkGlueStatus(ctx context.Context, metadata map[string]interface{}) (StatusResult, error) {
	jobName, _ := metadata["glue_job_name"].(string)
	runID, _ := metadata["glue_job_run_id"].(string)
	if jobName == "" || runID == "" {
		return StatusResult{}, fmt.Errorf("glue status: missing job name or run id")
	}

	client, err := r.getGlueClient()
	if err != nil {
		return StatusResult{}, fmt.Errorf("glue status: getting client: %w", err)
	}

	out, err := client.GetJobRun(ctx, &glue.GetJobRunInput{
		JobName: &jobName,
		RunId:   &runID,
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("glue status: GetJobRun failed: %w", err)
	}
	if out.JobRun == nil {
		return StatusResult{}, fmt.Errorf("glue status: GetJobRun returned nil JobRun")
	}

	state := out.JobRun.JobRunState
	switch state {
	case gluetypes.JobRunStateSucceeded:
		return succeeded(string(state)), nil
	case gluetypes.JobRunStateFailed, gluetypes.JobRunStateTimeout, gluetypes.JobRunStateError:
		return failed(string(state), types.ResultFailure), nil
	case gluetypes.JobRunStateStopped:
		return failed(string(state), types.ResultAborted), nil
	default:
		return running(string(state)), nil
	}
}
