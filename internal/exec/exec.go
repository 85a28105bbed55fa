package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecutionResult holds the outcome of a command execution.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor defines an interface for running external commands.
// This allows for mocking in tests.
type Executor interface {
	Run(ctx context.Context, dir, command string, args ...string) (*ExecutionResult, error)
}

// CommandExecutor runs commands on the host system.
type CommandExecutor struct{}

// NewCommandExecutor creates a new CommandExecutor.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{}
}

// Run executes the command in dir and returns its result. A non-zero exit
// code is reported in the result, not as an error.
func (e *CommandExecutor) Run(ctx context.Context, dir, command string, args ...string) (*ExecutionResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, err
		}
	}

	return &ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}, nil
}

// HeadCommit returns the commit id of HEAD of the git work tree containing dir.
func HeadCommit(ctx context.Context, e Executor, dir string) (string, error) {
	result, err := e.Run(ctx, dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to run git: %w", err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("git rev-parse HEAD failed with exit code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	commit := strings.TrimSpace(result.Stdout)
	if commit == "" {
		return "", fmt.Errorf("git rev-parse HEAD returned no commit")
	}
	return commit, nil
}
