package utils

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner runs an external program to completion. Implementations must
// return the captured stdout and stderr even when the process fails.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, dir string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec. dir, when non-empty, becomes the
// process working directory.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, dir string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// Tail returns at most the last n bytes of b as a string. Encoder diagnostics
// can run to megabytes; only the end is useful in an error.
func Tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
