package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nemanja-m/jobgrid/internal/shared/config"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
	"github.com/nemanja-m/jobgrid/internal/shared/transfer"
)

// Runtime drives one worker process: a heartbeat loop and a control loop
// share the coordinator connection. The control loop keeps reading while a
// job executes so a CANCEL_JOB can interrupt the in-flight child process.
type Runtime struct {
	conn     *protocol.LineConn
	cfg      *config.WorkerConfig
	executor Executor
	logger   logging.Logger

	mu            sync.Mutex
	currentJobID  string
	cancelCurrent context.CancelFunc
}

func NewRuntime(conn *protocol.LineConn, cfg *config.WorkerConfig, executor Executor, logger logging.Logger) *Runtime {
	return &Runtime{
		conn:     conn,
		cfg:      cfg,
		executor: executor,
		logger:   logger,
	}
}

// Run blocks until the coordinator connection drops or ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	go r.runHeartbeatLoop(ctx)
	return r.runControlLoop(ctx)
}

func (r *Runtime) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Coordinator.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.conn.WriteLines(protocol.CmdWorkerHeartbeat); err != nil {
				r.logger.Error("Failed to send heartbeat", "error", err)
				return
			}
		}
	}
}

func (r *Runtime) runControlLoop(ctx context.Context) error {
	for {
		command, err := r.conn.ReadLine()
		if err != nil {
			return fmt.Errorf("coordinator connection lost: %w", err)
		}

		switch strings.ToUpper(command) {
		case protocol.CmdProcessJob:
			jobID, err := r.conn.ReadLine()
			if err != nil {
				return err
			}
			scriptPath, err := r.conn.ReadLine()
			if err != nil {
				return err
			}
			dataDir, err := r.conn.ReadLine()
			if err != nil {
				return err
			}
			outputDir, err := r.conn.ReadLine()
			if err != nil {
				return err
			}

			jobCtx, cancel := context.WithCancel(ctx)
			r.setCurrent(jobID, cancel)
			go func() {
				defer cancel()
				defer r.clearCurrent(jobID)
				r.processJob(jobCtx, jobID, scriptPath, dataDir, outputDir)
			}()

		case protocol.CmdCancelJob:
			jobID, err := r.conn.ReadLine()
			if err != nil {
				return err
			}
			r.cancelJob(jobID)

		default:
			r.logger.Warn("Unknown command from coordinator", "command", command)
		}
	}
}

// processJob hosts both transfer phases and the execution in between, then
// reports completion on the control connection no matter what happened.
func (r *Runtime) processJob(ctx context.Context, jobID, scriptPath, dataDir, outputDir string) {
	r.logger.Info("Processing job",
		"job_id", jobID, "script", scriptPath, "data", dataDir, "output", outputDir)

	elapsed, err := r.runJob(ctx, jobID)
	success := err == nil
	if err != nil {
		r.logger.Error("Job failed", "job_id", jobID, "error", err)
	}

	reportErr := r.conn.WriteLines(
		protocol.CmdJobComplete,
		jobID,
		strconv.FormatBool(success),
		strconv.FormatInt(elapsed.Milliseconds(), 10),
	)
	if reportErr != nil {
		r.logger.Error("Failed to report completion", "job_id", jobID, "error", reportErr)
		return
	}
	r.logger.Info("Job finished", "job_id", jobID, "success", success, "elapsed", elapsed)
}

func (r *Runtime) runJob(ctx context.Context, jobID string) (time.Duration, error) {
	workDir := filepath.Join(r.cfg.Executor.WorkDir, "job_"+jobID)
	scriptDir := filepath.Join(workDir, "script")
	dataDir := filepath.Join(workDir, "data")
	outputDir := filepath.Join(workDir, "output")
	for _, dir := range []string{scriptDir, dataDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating job directory: %w", err)
		}
	}
	defer os.RemoveAll(workDir)

	scriptFile := filepath.Join(scriptDir, "script.py")
	if err := r.receiveInputs(jobID, scriptFile, dataDir); err != nil {
		return 0, err
	}

	if err := r.conn.WriteLines(protocol.CmdFilesReceived); err != nil {
		return 0, err
	}

	elapsed, err := r.executor.Execute(ctx, workDir, scriptFile, dataDir, outputDir)
	if err != nil {
		return elapsed, err
	}

	if err := r.sendOutputs(jobID, outputDir); err != nil {
		return elapsed, err
	}
	return elapsed, nil
}

// receiveInputs opens the ephemeral upload endpoint, reports its port to the
// coordinator and reads the script plus data files from the client.
func (r *Runtime) receiveInputs(jobID, scriptFile, dataDir string) error {
	ln, port, err := transfer.Listen()
	if err != nil {
		return fmt.Errorf("opening upload endpoint: %w", err)
	}
	defer ln.Close()

	r.logger.Info("Upload endpoint open", "job_id", jobID, "port", port)
	if err := r.conn.WriteLines(protocol.CmdFileTransferPort, strconv.Itoa(port)); err != nil {
		return err
	}

	timeout := r.cfg.Transfer.AcceptTimeout
	dataConn, err := transfer.Accept(ln, timeout)
	if err != nil {
		return err
	}
	defer dataConn.Close()

	return transfer.ReceiveUpload(dataConn, scriptFile, dataDir, timeout)
}

// sendOutputs opens the ephemeral download endpoint when the execution left
// output files behind. No output files means no download phase.
func (r *Runtime) sendOutputs(jobID, outputDir string) error {
	outputs, err := transfer.ListDir(outputDir)
	if err != nil {
		return fmt.Errorf("listing output files: %w", err)
	}
	if len(outputs) == 0 {
		r.logger.Info("No output files to send", "job_id", jobID)
		return nil
	}

	ln, port, err := transfer.Listen()
	if err != nil {
		return fmt.Errorf("opening download endpoint: %w", err)
	}
	defer ln.Close()

	r.logger.Info("Download endpoint open", "job_id", jobID, "port", port, "files", len(outputs))
	if err := r.conn.WriteLines(protocol.CmdOutputTransferPort, strconv.Itoa(port)); err != nil {
		return err
	}

	timeout := r.cfg.Transfer.AcceptTimeout
	outConn, err := transfer.Accept(ln, timeout)
	if err != nil {
		return err
	}
	defer outConn.Close()

	return transfer.SendFiles(outConn, outputs, timeout)
}

func (r *Runtime) setCurrent(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentJobID = jobID
	r.cancelCurrent = cancel
}

func (r *Runtime) clearCurrent(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentJobID == jobID {
		r.currentJobID = ""
		r.cancelCurrent = nil
	}
}

// cancelJob terminates the in-flight child process via its context. An empty
// or matching job id cancels whatever is running.
func (r *Runtime) cancelJob(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelCurrent == nil {
		r.logger.Warn("Cancel request with no job in flight", "job_id", jobID)
		return
	}
	if jobID != "" && jobID != r.currentJobID {
		r.logger.Warn("Cancel request for a different job",
			"job_id", jobID, "current_job_id", r.currentJobID)
		return
	}
	r.logger.Info("Cancelling current job", "job_id", r.currentJobID)
	r.cancelCurrent()
}
