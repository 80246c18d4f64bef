// Package pandoc wraps the external converter binary behind a narrow
// interface so handlers can be tested without spawning a real process.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout signals that the converter exceeded its wall-clock budget and
// was killed.
var ErrTimeout = errors.New("converter timed out")

// Result captures the observable outcome of one converter invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs the converter against an input file, writing to an output file.
// A non-zero exit is reported through Result, not the error; the error is
// reserved for spawn failures and timeouts.
type Runner interface {
	Run(ctx context.Context, inputPath, outputPath string) (Result, error)
}

// CLI invokes the converter binary as `<binary> <input> -o <output>` with
// explicit arguments, never through a shell.
type CLI struct {
	Binary  string
	Timeout time.Duration
}

// NewCLI returns a CLI runner for the given binary and time budget.
func NewCLI(binary string, timeout time.Duration) *CLI {
	return &CLI{Binary: binary, Timeout: timeout}
}

// Available reports whether the configured binary can be found on PATH.
func (c *CLI) Available() bool {
	_, err := exec.LookPath(c.Binary)
	return err == nil
}

// Run executes the converter and waits for it to finish. When the timeout
// elapses the process is killed and ErrTimeout is returned.
func (c *CLI) Run(ctx context.Context, inputPath, outputPath string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Binary, inputPath, "-o", outputPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return res, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", c.Binary, err)
	}
	return res, nil
}
