package trigger

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emrserverless"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

type mockGlueClient struct {
	startOut *glue.StartJobRunOutput
	startErr error
	startIn  *glue.StartJobRunInput

	mu       sync.Mutex
	getOuts  []*glue.GetJobRunOutput // returned in order, last one repeats
	getErrs  []error
	getCalls int
}

func (m *mockGlueClient) StartJobRun(_ context.Context, params *glue.StartJobRunInput, _ ...func(*glue.Options)) (*glue.StartJobRunOutput, error) {
	m.startIn = params
	return m.startOut, m.startErr
}

func (m *mockGlueClient) GetJobRun(_ context.Context, _ *glue.GetJobRunInput, _ ...func(*glue.Options)) (*glue.GetJobRunOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.getCalls
	m.getCalls++
	var err error
	if i < len(m.getErrs) {
		err = m.getErrs[i]
	}
	if err != nil {
		return nil, err
	}
	if i >= len(m.getOuts) {
		i = len(m.getOuts) - 1
	}
	return m.getOuts[i], nil
}

type mockEMRClient struct {
	addOut      *emr.AddJobFlowStepsOutput
	addErr      error
	addIn       *emr.AddJobFlowStepsInput
	describeOut *emr.DescribeStepOutput
	describeErr error
}

func (m *mockEMRClient) AddJobFlowSteps(_ context.Context, params *emr.AddJobFlowStepsInput, _ ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error) {
	m.addIn = params
	return m.addOut, m.addErr
}

func (m *mockEMRClient) DescribeStep(_ context.Context, _ *emr.DescribeStepInput, _ ...func(*emr.Options)) (*emr.DescribeStepOutput, error) {
	return m.describeOut, m.describeErr
}

type mockEMRServerlessClient struct {
	startOut *emrserverless.StartJobRunOutput
	startErr error
	startIn  *emrserverless.StartJobRunInput
	getOut   *emrserverless.GetJobRunOutput
	getErr   error
}

func (m *mockEMRServerlessClient) StartJobRun(_ context.Context, params *emrserverless.StartJobRunInput, _ ...func(*emrserverless.Options)) (*emrserverless.StartJobRunOutput, error) {
	m.startIn = params
	return m.startOut, m.startErr
}

func (m *mockEMRServerlessClient) GetJobRun(_ context.Context, _ *emrserverless.GetJobRunInput, _ ...func(*emrserverless.Options)) (*emrserverless.GetJobRunOutput, error) {
	return m.getOut, m.getErr
}

type mockSFNClient struct {
	startOut    *sfn.StartExecutionOutput
	startErr    error
	startIn     *sfn.StartExecutionInput
	describeOut *sfn.DescribeExecutionOutput
	describeErr error
}

func (m *mockSFNClient) StartExecution(_ context.Context, params *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	m.startIn = params
	return m.startOut, m.startErr
}

func (m *mockSFNClient) DescribeExecution(_ context.Context, _ *sfn.DescribeExecutionInput, _ ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error) {
	return m.describeOut, m.describeErr
}

type mockLambdaClient struct {
	out *lambda.InvokeOutput
	err error
	in  *lambda.InvokeInput
}

func (m *mockLambdaClient) Invoke(_ context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.in = params
	return m.out, m.err
}

type mockSecretsClient struct {
	secrets map[string]string
	err     error
	calls   int
}

func (m *mockSecretsClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.secrets[*params.SecretId]
	if !ok {
		return &secretsmanager.GetSecretValueOutput{}, nil
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &v}, nil
}
