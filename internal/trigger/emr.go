package trigger

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// EMRAPI is the subset of the AWS EMR client used by the trigger package.
type EMRAPI interface {
	AddJobFlowSteps(ctx context.Context, params *emr.AddJobFlowStepsInput, optFns ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error)
	DescribeStep(ctx context.Context, params *emr.DescribeStepInput, optFns ...func(*emr.Options)) (*emr.DescribeStepOutput, error)
}

// ExecuteEMR adds a JAR step to an existing EMR cluster. Arguments are passed
// as key=value in key order.
func ExecuteEMR(ctx context.Context, cfg *types.EMRBuildConfig, client EMRAPI) (map[string]interface{}, error) {
	if cfg.ClusterID == "" {
		return nil, fmt.Errorf("emr build: clusterId is required")
	}
	if cfg.Jar == "" {
		return nil, fmt.Errorf("emr build: jar is required")
	}
	stepName := cfg.StepName
	if stepName == "" {
		stepName = "prebuild"
	}

	keys := make([]string, 0, len(cfg.Arguments))
	for k := range cfg.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+cfg.Arguments[k])
	}

	out, err := client.AddJobFlowSteps(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: &cfg.ClusterID,
		Steps: []emrtypes.StepConfig{
			{
				Name: &stepName,
				HadoopJarStep: &emrtypes.HadoopJarStepConfig{
					Jar:  &cfg.Jar,
					Args: args,
				},
				ActionOnFailure: emrtypes.ActionOnFailureContinue,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("emr build: AddJobFlowSteps failed: %w", err)
	}

	stepID := ""
	if len(out.StepIds) > 0 {
		stepID = out.StepIds[0]
	}
	return map[string]interface{}{
		"emr_cluster_id": cfg.ClusterID,
		"emr_step_id":    stepID,
	}, nil
}

func (r *Runner) checkEMRStatus(ctx context.Context, metadata map[string]interface{}) (StatusResult, error) {
	clusterID, _ := metadata["emr_cluster_id"].(string)
	stepID, _ := metadata["emr_step_id"].(string)
	if clusterID == "" || stepID == "" {
		return StatusResult{}, fmt.Errorf("emr status: missing cluster or step id")
	}

	client, err := r.getEMRClient()
	if err != nil {
		return StatusResult{}, fmt.Errorf("emr status: getting client: %w", err)
	}

	out, err := client.DescribeStep(ctx, &emr.DescribeStepInput{
		ClusterId: &clusterID,
		StepId:    &stepID,
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("emr status: DescribeStep failed: %w", err)
	}
	if out.Step == nil || out.Step.Status == nil {
		return StatusResult{}, fmt.Errorf("emr status: DescribeStep returned no status")
	}

	state := out.Step.Status.State
	switch state {
	case emrtypes.StepStateCompleted:
		return succeeded(string(state)), nil
	case emrtypes.StepStateFailed, emrtypes.StepStateInterrupted:
		return failed(string(state), types.ResultFailure), nil
	case emrtypes.StepStateCancelled:
		return failed(string(state), types.ResultAborted), nil
	default:
		return running(string(state)), nil
	}
}
