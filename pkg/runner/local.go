package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ExecOptions describes one run command. ToolDirs are prepended to PATH so
// commands can invoke tools installed by earlier steps.
type ExecOptions struct {
	Command  string
	Dir      string
	Env      []string
	ToolDirs []string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Executor runs a single command to completion and reports its verdict. A
// nonzero exit must be returned as a ToolExitError.
type Executor interface {
	Exec(ctx context.Context, opts ExecOptions) error
}

// LocalExecutor runs commands as host processes in the job workspace.
type LocalExecutor struct{}

func (LocalExecutor) Exec(ctx context.Context, opts ExecOptions) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", opts.Command)
	cmd.Dir = opts.Dir
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	cmd.Env = append(os.Environ(), opts.Env...)
	if len(opts.ToolDirs) > 0 {
		cmd.Env = append(cmd.Env, fmt.Sprintf("PATH=%s:%s", strings.Join(opts.ToolDirs, ":"), os.Getenv("PATH")))
	}

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolExitError{Command: opts.Command, Code: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("unable to run %q: %w", opts.Command, err)
	}
	return nil
}
