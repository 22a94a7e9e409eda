package scheduler

import (
	"errors"
	"os"
	"os/exec"

	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

// WorkerLauncher requests one additional worker process out-of-band. The new
// worker announces itself by connecting back to the coordinator's worker
// listener like any other.
type WorkerLauncher interface {
	Launch() error
}

// ProcessLauncher spawns the configured worker command as a detached child
// process.
type ProcessLauncher struct {
	command []string
	logger  logging.Logger
}

func NewProcessLauncher(command []string, logger logging.Logger) *ProcessLauncher {
	return &ProcessLauncher{command: command, logger: logger}
}

func (l *ProcessLauncher) Launch() error {
	if len(l.command) == 0 {
		return errors.New("no worker command configured")
	}

	cmd := exec.Command(l.command[0], l.command[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	l.logger.Info("Launched worker process", "pid", cmd.Process.Pid, "command", l.command[0])

	// Reap the child when it exits.
	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Warn("Worker process exited with error", "pid", cmd.Process.Pid, "error", err)
		}
	}()
	return nil
}
