package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// SFNAPI is the subset of the AWS Step Functions client used by the trigger package.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// ExecuteSFN starts an AWS Step Functions execution. Arguments become the
// execution input as a JSON object.
func ExecuteSFN(ctx context.Context, cfg *types.StepFunctionBuildConfig, client SFNAPI) (map[string]interface{}, error) {
	if cfg.StateMachineARN == "" {
		return nil, fmt.Errorf("step-function build: stateMachineArn is required")
	}

	input := &sfn.StartExecutionInput{
		StateMachineArn: &cfg.StateMachineARN,
	}
	if len(cfg.Arguments) > 0 {
		b, err := json.Marshal(cfg.Arguments)
		if err != nil {
			return nil, fmt.Errorf("step-function build: marshaling arguments: %w", err)
		}
		s := string(b)
		input.Input = &s
	}

	out, err := client.StartExecution(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("step-function build: StartExecution failed: %w", err)
	}

	arn := ""
	if out.ExecutionArn != nil {
		arn = *out.ExecutionArn
	}
	return map[string]interface{}{
		"sfn_execution_arn": arn,
	}, nil
}

func (r *Runner) checkSFNStatus(ctx context.Context, metadata map[string]interface{}) (StatusResult, error) {
	execArn, _ := metadata["sfn_execution_arn"].(string)
	if execArn == "" {
		return StatusResult{}, fmt.Errorf("sfn status: missing execution arn")
	}

	client, err := r.getSFNClient()
	if err != nil {
		return StatusResult{}, fmt.Errorf("sfn status: getting client: %w", err)
	}

	out, err := client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: &execArn,
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("sfn status: DescribeExecution failed: %w", err)
	}

	state := out.Status
	switch state {
	case sfntypes.ExecutionStatusSucceeded:
		return succeeded(string(state)), nil
	case sfntypes.ExecutionStatusFailed, sfntypes.ExecutionStatusTimedOut:
		return failed(string(state), types.ResultFailure), nil
	case sfntypes.ExecutionStatusAborted:
		return failed(string(state), types.ResultAborted), nil
	default:
		return running(string(state)), nil
	}
}
