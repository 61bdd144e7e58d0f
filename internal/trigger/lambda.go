package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// LambdaAPI is the subset of the AWS Lambda client used by the trigger package.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// ExecuteLambda invokes a function synchronously. A function error is
// FAILURE; the default payload is {"job": "<name>"}.
func ExecuteLambda(ctx context.Context, job string, cfg *types.LambdaBuildConfig, client LambdaAPI) (types.BuildResult, map[string]interface{}, error) {
	if cfg.FunctionName == "" {
		return "", nil, fmt.Errorf("lambda build: functionName is required")
	}

	payload := []byte(cfg.Payload)
	if len(payload) == 0 {
		b, err := json.Marshal(map[string]string{"job": job})
		if err != nil {
			return "", nil, fmt.Errorf("lambda build: marshaling payload: %w", err)
		}
		payload = b
	}

	out, err := client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &cfg.FunctionName,
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.ResultAborted, nil, nil
		}
		return "", nil, fmt.Errorf("lambda build: Invoke failed: %w", err)
	}

	meta := map[string]interface{}{
		"lambda_function":    cfg.FunctionName,
		"lambda_status_code": out.StatusCode,
	}
	if out.FunctionError != nil {
		meta["lambda_function_error"] = *out.FunctionError
		return types.ResultFailure, meta, nil
	}
	return types.ResultSuccess, meta, nil
}
