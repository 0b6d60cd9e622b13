package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCapturesStdout(t *testing.T) {
	e := NewCLIExecutor()

	result, err := e.Execute(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	e := NewCLIExecutor()

	result, err := e.Execute(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo boom >&2; exit 3"},
	})
	require.NoError(t, err, "nonzero exit is a result, not an execution failure")

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "boom\n", result.Stderr)
}

func TestExecuteMissingBinaryIsAnError(t *testing.T) {
	e := NewCLIExecutor()

	_, err := e.Execute(context.Background(), Command{Name: "kartta-no-such-binary"})
	assert.Error(t, err)
}

func TestExecuteHonorsTimeout(t *testing.T) {
	e := NewCLIExecutor()

	result, err := e.Execute(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	// A killed process surfaces as a nonzero exit, not a crash
	if err == nil {
		assert.NotEqual(t, 0, result.ExitCode)
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{ExitCode: 254, Stderr: "AccessDenied"}
	assert.Contains(t, err.Error(), "254")
	assert.Contains(t, err.Error(), "AccessDenied")
}
