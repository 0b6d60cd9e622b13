// Package executor defines the command execution substrate consumed by the
// scanners. The substrate itself is an external collaborator; this package
// carries its contract plus a thin os/exec-backed default.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kartta-io/kartta/telemetry"
)

// Command describes one external CLI invocation.
type Command struct {
	Name    string
	Args    []string
	Profile string
	Region  string
	Timeout time.Duration
}

// ExecutionResult is the structured outcome of one command run.
// A nonzero exit code is a result, not an execution error.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor runs one external command and returns its result or failure.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// ExitError reports a command that ran to completion but exited nonzero.
// Scanners return it from discovery so the orchestrator can classify the
// failure with its exit code and stderr.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Stderr)
}

const defaultTimeout = 2 * time.Minute

// CLIExecutor executes commands via os/exec.
type CLIExecutor struct {
	logger *telemetry.Logger
}

// NewCLIExecutor creates the default executor
func NewCLIExecutor() *CLIExecutor {
	return &CLIExecutor{logger: telemetry.NewLogger("executor")}
}

// Execute runs the command, honoring the command timeout via context.
// Credential profile and region are passed through the environment so the
// invoked CLI resolves them the same way an operator's shell would.
func (e *CLIExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- command names and args come from registered scanners
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Env = os.Environ()
	if cmd.Profile != "" {
		proc.Env = append(proc.Env, "AWS_PROFILE="+cmd.Profile)
	}
	if cmd.Region != "" {
		proc.Env = append(proc.Env, "AWS_DEFAULT_REGION="+cmd.Region)
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	err := proc.Run()
	duration := time.Since(start)

	result := &ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			e.logger.Debug().
				Str("command", cmd.Name).
				Int("exit_code", result.ExitCode).
				Dur("duration", duration).
				Msg("command exited nonzero")
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", cmd.Name, err)
	}

	e.logger.Debug().
		Str("command", cmd.Name).
		Dur("duration", duration).
		Msg("command complete")

	return result, nil
}
