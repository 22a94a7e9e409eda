package service

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

// Executor runs the received computation and reports exit outcome plus wall
// time. The computation itself is opaque: a child process with arguments
// (script, data dir, output dir).
type Executor interface {
	Execute(ctx context.Context, workDir, scriptPath, dataDir, outputDir string) (time.Duration, error)
}

// ProcessExecutor invokes the configured interpreter on the script. Context
// cancellation kills the child process.
type ProcessExecutor struct {
	interpreter string
	logger      logging.Logger
}

func NewProcessExecutor(interpreter string, logger logging.Logger) *ProcessExecutor {
	return &ProcessExecutor{interpreter: interpreter, logger: logger}
}

func (e *ProcessExecutor) Execute(ctx context.Context, workDir, scriptPath, dataDir, outputDir string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, e.interpreter, scriptPath, dataDir, outputDir)
	cmd.Dir = workDir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if len(output) > 0 {
		e.logger.Debug("Child process output", "script", scriptPath, "output", string(output))
	}
	if ctx.Err() != nil {
		return elapsed, fmt.Errorf("execution cancelled: %w", ctx.Err())
	}
	if err != nil {
		return elapsed, fmt.Errorf("child process failed: %w", err)
	}
	return elapsed, nil
}
