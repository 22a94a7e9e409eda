package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/scheduler"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// WorkerSession serves one worker control connection. Its read loop is the
// primary failure detector: when the connection errors or closes, the worker
// is treated as failed and its in-flight job requeued or failed by the
// scheduler.
type WorkerSession struct {
	workerID  uuid.UUID
	conn      *protocol.LineConn
	scheduler *scheduler.Scheduler
	sessions  *SessionRegistry
	logger    logging.Logger
}

func NewWorkerSession(
	workerID uuid.UUID,
	conn *protocol.LineConn,
	sched *scheduler.Scheduler,
	sessions *SessionRegistry,
	logger logging.Logger,
) *WorkerSession {
	return &WorkerSession{
		workerID:  workerID,
		conn:      conn,
		scheduler: sched,
		sessions:  sessions,
		logger:    logger,
	}
}

func (s *WorkerSession) Run() {
	defer func() {
		s.conn.Close()
		s.logger.Info("Worker disconnected", "worker_id", s.workerID)
		s.scheduler.HandleWorkerFailure(s.workerID)
	}()

	for {
		command, err := s.conn.ReadLine()
		if err != nil {
			return
		}

		switch strings.ToUpper(command) {
		case protocol.CmdWorkerHeartbeat:
			if err := s.scheduler.RecordHeartbeat(s.workerID); err != nil {
				// The worker was evicted from the registry; drop the session
				// instead of letting it heartbeat into the void.
				s.logger.Warn("Heartbeat from unregistered worker",
					"worker_id", s.workerID, "error", err)
				return
			}

		case protocol.CmdFileTransferPort:
			port, err := s.conn.ReadLine()
			if err != nil {
				return
			}
			s.relayToOwner(protocol.ReplyFileTransferPort, s.conn.RemoteHost(), port)

		case protocol.CmdOutputTransferPort:
			port, err := s.conn.ReadLine()
			if err != nil {
				return
			}
			s.relayToOwner(protocol.ReplyOutputTransferPort, s.conn.RemoteHost(), port)

		case protocol.CmdFilesReceived:
			s.relayToOwner(protocol.ReplyFilesReceived)

		case protocol.CmdJobComplete:
			if err := s.handleJobComplete(); err != nil {
				return
			}

		default:
			s.logger.Warn("Unknown command from worker",
				"worker_id", s.workerID, "command", command)
		}
	}
}

func (s *WorkerSession) handleJobComplete() error {
	jobIDLine, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	successLine, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	elapsedLine, err := s.conn.ReadLine()
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(strings.TrimSpace(jobIDLine))
	if err != nil {
		s.logger.Warn("Completion report with invalid job id",
			"worker_id", s.workerID, "job_id", jobIDLine)
		return nil
	}
	success, _ := strconv.ParseBool(strings.TrimSpace(successLine))
	elapsedMs, _ := strconv.ParseInt(strings.TrimSpace(elapsedLine), 10, 64)

	s.scheduler.HandleCompletion(s.workerID, jobID, success, time.Duration(elapsedMs)*time.Millisecond)
	return nil
}

// relayToOwner forwards worker transfer events to the client session owning
// the worker's current job. A missing job or logged-out client drops the
// relay; the transfer itself will time out on the worker side.
func (s *WorkerSession) relayToOwner(lines ...string) {
	job, err := s.scheduler.JobForWorker(s.workerID)
	if err != nil {
		s.logger.Warn("Transfer relay with no active job", "worker_id", s.workerID)
		return
	}
	session, ok := s.sessions.Get(job.Owner)
	if !ok {
		s.logger.Warn("Transfer relay with no client session",
			"worker_id", s.workerID, "job_id", job.ID, "owner", job.Owner)
		return
	}
	if err := session.Send(lines...); err != nil {
		s.logger.Warn("Failed to relay to client",
			"worker_id", s.workerID, "owner", job.Owner, "error", err)
	}
}
