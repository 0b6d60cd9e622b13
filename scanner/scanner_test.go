package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// mockExecutor returns canned results keyed by the first CLI arg
type mockExecutor struct {
	results map[string]*executor.ExecutionResult
	err     error
	calls   []executor.Command
}

func (m *mockExecutor) Execute(ctx context.Context, cmd executor.Command) (*executor.ExecutionResult, error) {
	m.calls = append(m.calls, cmd)
	if m.err != nil {
		return nil, m.err
	}
	if result, ok := m.results[cmd.Args[0]]; ok {
		return result, nil
	}
	return &executor.ExecutionResult{Stdout: "{}"}, nil
}

func testContext() types.ScanContext {
	return types.ScanContext{
		AccountID:         "111122223333",
		AccountName:       "prod",
		Region:            "us-west-2",
		CredentialProfile: "prod-scanner",
	}
}

func TestRegistry(t *testing.T) {
	Clear()
	defer Clear()

	s := NewComputeScanner(&mockExecutor{})
	Register(s)

	got, ok := Get("compute")
	require.True(t, ok)
	assert.Equal(t, "compute", got.ServiceName())

	_, ok = Get("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"compute"}, Names())
}

const describeInstancesOutput = `{
  "Reservations": [
    {
      "Instances": [
        {
          "InstanceId": "i-0abc123",
          "InstanceType": "t3.micro",
          "State": {"Name": "running"},
          "Placement": {"AvailabilityZone": "us-west-2a"},
          "Tags": [
            {"Key": "Name", "Value": "web-1"},
            {"Key": "Team", "Value": "platform"}
          ]
        },
        {
          "InstanceId": "i-0def456",
          "State": {"Name": "stopped"}
        }
      ]
    }
  ]
}`

func TestComputeDiscoverAndTransform(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"ec2": {Stdout: describeInstancesOutput},
	}}
	s := NewComputeScanner(exec)
	sc := testContext()

	records, err := s.Discover(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// discovery passed profile and region through to the substrate
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "prod-scanner", exec.calls[0].Profile)
	assert.Equal(t, "us-west-2", exec.calls[0].Region)

	r, err := s.Transform(records[0], sc)
	require.NoError(t, err)
	assert.Equal(t, "i-0abc123", r.ExternalID)
	assert.Equal(t, "compute.instance", r.Type)
	assert.Equal(t, "running", r.Status)
	assert.Equal(t, "web-1", r.Name)
	assert.Equal(t, "platform", r.Tags["Team"])
	assert.Equal(t, "arn:aws:ec2:us-west-2:111122223333:instance/i-0abc123", r.ARN)
	assert.Equal(t, "t3.micro", r.Constraints.Metadata["instance_type"])
	assert.NoError(t, s.Validate(r))

	r2, err := s.Transform(records[1], sc)
	require.NoError(t, err)
	assert.Equal(t, "stopped", r2.Status)
	assert.Empty(t, r2.Name)
}

func TestComputeTransformIsDeterministic(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"ec2": {Stdout: describeInstancesOutput},
	}}
	s := NewComputeScanner(exec)
	sc := testContext()

	records, err := s.Discover(context.Background(), sc)
	require.NoError(t, err)

	first, err := s.Transform(records[0], sc)
	require.NoError(t, err)
	second, err := s.Transform(records[0], sc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeTransformRejectsMissingID(t *testing.T) {
	s := NewComputeScanner(&mockExecutor{})
	_, err := s.Transform(types.RawRecord{Service: "compute", Payload: map[string]any{}}, testContext())
	assert.Error(t, err)
}

func TestComputeValidateRejectsForeignID(t *testing.T) {
	s := NewComputeScanner(&mockExecutor{})
	err := s.Validate(types.Resource{ExternalID: "vol-123"})
	assert.Error(t, err)
}

func TestDiscoverEmptyResultIsValid(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"ec2": {Stdout: `{"Reservations": []}`},
	}}
	s := NewComputeScanner(exec)

	records, err := s.Discover(context.Background(), testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiscoverEmptyStdoutIsValid(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"s3api": {Stdout: ""},
	}}
	s := NewObjectStoreScanner(exec)

	records, err := s.Discover(context.Background(), testContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiscoverNonZeroExit(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"ec2": {ExitCode: 254, Stderr: "Unable to locate credentials"},
	}}
	s := NewComputeScanner(exec)

	_, err := s.Discover(context.Background(), testContext())
	require.Error(t, err)

	var exitErr *executor.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 254, exitErr.ExitCode)
	assert.Contains(t, exitErr.Stderr, "credentials")
}

func TestDiscoverUnparsableOutput(t *testing.T) {
	exec := &mockExecutor{results: map[string]*executor.ExecutionResult{
		"rds": {Stdout: "An error occurred, but exit code lied"},
	}}
	s := NewDatabaseScanner(exec)

	_, err := s.Discover(context.Background(), testContext())
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Snippet, "An error occurred")
}

func TestDatabaseTransform(t *testing.T) {
	record := types.RawRecord{
		Service: "database",
		Kind:    "db-instance",
		Payload: map[string]any{
			"DBInstanceIdentifier": "orders-db",
			"DBInstanceStatus":     "available",
			"DBInstanceArn":        "arn:aws:rds:us-west-2:111122223333:db:orders-db",
			"Engine":               "postgres",
			"DeletionProtection":   true,
			"TagList": []any{
				map[string]any{"Key": "Environment", "Value": "prod"},
			},
		},
	}

	s := NewDatabaseScanner(&mockExecutor{})
	r, err := s.Transform(record, testContext())
	require.NoError(t, err)

	assert.Equal(t, "orders-db", r.ExternalID)
	assert.Equal(t, "available", r.Status)
	assert.Equal(t, "postgres", r.Constraints.Metadata["engine"])
	assert.Equal(t, "true", r.Constraints.Metadata["deletion_protection"])
	assert.Equal(t, "prod", r.Tags["Environment"])
}

func TestObjectStoreTransform(t *testing.T) {
	record := types.RawRecord{
		Service: "objectstore",
		Kind:    "bucket",
		Payload: map[string]any{
			"Name":         "artifacts-bucket",
			"CreationDate": "2024-03-01T12:00:00+00:00",
		},
	}

	s := NewObjectStoreScanner(&mockExecutor{})
	r, err := s.Transform(record, testContext())
	require.NoError(t, err)

	assert.Equal(t, "artifacts-bucket", r.ExternalID)
	assert.Equal(t, "available", r.Status)
	assert.Equal(t, "arn:aws:s3:::artifacts-bucket", r.ARN)
}

func TestFunctionTransformDefaultsState(t *testing.T) {
	record := types.RawRecord{
		Service: "function",
		Kind:    "function",
		Payload: map[string]any{
			"FunctionName": "billing-hook",
			"FunctionArn":  "arn:aws:lambda:us-west-2:111122223333:function:billing-hook",
			"Runtime":      "go1.x",
			"MemorySize":   float64(256),
		},
	}

	s := NewFunctionScanner(&mockExecutor{})
	r, err := s.Transform(record, testContext())
	require.NoError(t, err)

	assert.Equal(t, "Active", r.Status)
	assert.Equal(t, "go1.x", r.Constraints.Metadata["runtime"])
	assert.Equal(t, "256", r.Constraints.Metadata["memory_mb"])
}

func TestNetworkTransform(t *testing.T) {
	record := types.RawRecord{
		Service: "network",
		Kind:    "vpc",
		Payload: map[string]any{
			"VpcId":     "vpc-0a1b2c",
			"State":     "available",
			"CidrBlock": "10.0.0.0/16",
			"IsDefault": true,
			"Tags": []any{
				map[string]any{"Key": "Name", "Value": "main"},
			},
		},
	}

	s := NewNetworkScanner(&mockExecutor{})
	r, err := s.Transform(record, testContext())
	require.NoError(t, err)

	assert.Equal(t, "vpc-0a1b2c", r.ExternalID)
	assert.Equal(t, "main", r.Name)
	assert.Equal(t, "10.0.0.0/16", r.Constraints.Metadata["cidr_block"])
	assert.Equal(t, "true", r.Constraints.Metadata["is_default"])
}
