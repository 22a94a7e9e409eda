package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/coordinator/scheduler"
	"github.com/nemanja-m/jobgrid/internal/coordinator/service"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// ClientSession serves one client control connection. Commands arrive as
// line-oriented tokens with their arguments on the following lines; replies
// mirror that shape. Transfer-port relays from worker sessions are written to
// the same connection, which is why every reply goes through the connection's
// serialized writer.
type ClientSession struct {
	conn      *protocol.LineConn
	scheduler *scheduler.Scheduler
	auth      *service.AuthService
	sessions  *SessionRegistry
	logger    logging.Logger

	currentUser string
}

func NewClientSession(
	conn *protocol.LineConn,
	sched *scheduler.Scheduler,
	auth *service.AuthService,
	sessions *SessionRegistry,
	logger logging.Logger,
) *ClientSession {
	return &ClientSession{
		conn:      conn,
		scheduler: sched,
		auth:      auth,
		sessions:  sessions,
		logger:    logger,
	}
}

// Send relays lines to this client from another goroutine (worker session
// events). Safe for concurrent use.
func (s *ClientSession) Send(lines ...string) error {
	return s.conn.WriteLines(lines...)
}

// Run reads commands until the client disconnects. An I/O error closes this
// session only; scheduler state is untouched.
func (s *ClientSession) Run() {
	defer func() {
		if s.currentUser != "" {
			s.sessions.Remove(s.currentUser, s)
		}
		s.conn.Close()
		s.logger.Info("Client disconnected", "remote_addr", s.conn.RemoteAddr().String())
	}()

	for {
		command, err := s.conn.ReadLine()
		if err != nil {
			return
		}

		switch strings.ToUpper(command) {
		case protocol.CmdRegister:
			err = s.handleRegister()
		case protocol.CmdLogin:
			err = s.handleLogin()
		case protocol.CmdSubmitJob:
			err = s.handleSubmitJob()
		case protocol.CmdCheckStatus:
			err = s.handleCheckStatus()
		case protocol.CmdCancelJob:
			err = s.handleCancelJob()
		case protocol.CmdGetBill:
			err = s.handleGetBill()
		default:
			err = s.conn.WriteLines(protocol.ReplyUnknownCommand)
		}
		if err != nil {
			return
		}
	}
}

func (s *ClientSession) handleRegister() error {
	email, err := s.conn.ReadLine()
	if err != nil {
		return err
	}

	password, err := s.auth.Register(email)
	if err != nil {
		if errors.Is(err, core.ErrInvalidEmail) {
			return s.conn.WriteLines(protocol.ReplyInvalidEmail)
		}
		return err
	}
	return s.conn.WriteLines(protocol.ReplyValidEmail, password)
}

func (s *ClientSession) handleLogin() error {
	email, err := s.conn.ReadLine()
	if err != nil {
		return err
	}

	if _, err := s.auth.UserExists(email); err != nil {
		return s.conn.WriteLines(protocol.ReplyEmailNotFound)
	}
	if err := s.conn.WriteLines(protocol.ReplyEmailFound); err != nil {
		return err
	}

	password, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	if err := s.auth.Login(email, password); err != nil {
		return s.conn.WriteLines(protocol.ReplyLoginFailed)
	}

	s.currentUser = email
	s.sessions.Add(email, s)
	return s.conn.WriteLines(protocol.ReplyLoginSuccess)
}

func (s *ClientSession) handleSubmitJob() error {
	if s.currentUser == "" {
		return s.conn.WriteLines(protocol.ReplyNotLoggedIn)
	}

	scriptPath, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	dataDir, err := s.conn.ReadLine()
	if err != nil {
		return err
	}
	outputDir, err := s.conn.ReadLine()
	if err != nil {
		return err
	}

	jobID, err := s.scheduler.Submit(s.currentUser, scriptPath, dataDir, outputDir)
	if err != nil {
		return err
	}

	// Acknowledge before dispatching. A dispatched worker's transfer-port
	// relay lands on this same connection; the client must see JOB_SUBMITTED
	// and the id first.
	if err := s.conn.WriteLines(protocol.ReplyJobSubmitted, jobID.String()); err != nil {
		return err
	}
	s.scheduler.Dispatch()
	return nil
}

func (s *ClientSession) handleCheckStatus() error {
	jobID, err := s.readJobID()
	if err != nil {
		return err
	}
	if jobID == uuid.Nil {
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}

	job, err := s.scheduler.CheckStatus(jobID)
	if err != nil {
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}

	lines := []string{protocol.ReplyJobFound, string(job.Status)}
	if job.Status == core.JobStatusCompleted {
		lines = append(lines, protocol.ReplyOutputLocation, job.OutputDir)
		lines = append(lines, billLines(job)...)
	}
	return s.conn.WriteLines(lines...)
}

func (s *ClientSession) handleCancelJob() error {
	jobID, err := s.readJobID()
	if err != nil {
		return err
	}
	if jobID == uuid.Nil {
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}

	switch err := s.scheduler.Cancel(jobID); {
	case err == nil:
		return s.conn.WriteLines(protocol.ReplyJobCancelled)
	case errors.Is(err, core.ErrWorkerNotFound):
		return s.conn.WriteLines(protocol.ReplyWorkerNotFound)
	case errors.Is(err, core.ErrJobNotCancellable):
		return s.conn.WriteLines(protocol.ReplyJobNotCancellable)
	default:
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}
}

func (s *ClientSession) handleGetBill() error {
	jobID, err := s.readJobID()
	if err != nil {
		return err
	}
	if jobID == uuid.Nil {
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}

	bill, err := s.scheduler.Bill(jobID)
	if err != nil {
		if errors.Is(err, core.ErrJobNotBillable) {
			return s.conn.WriteLines(protocol.ReplyJobNotBillable)
		}
		return s.conn.WriteLines(protocol.ReplyJobNotFound)
	}

	return s.conn.WriteLines(
		protocol.ReplyBillInfo,
		bill.JobID.String(),
		bill.StartedAt.Format(time.RFC3339),
		bill.EndedAt.Format(time.RFC3339),
		fmt.Sprintf("$%.2f", bill.Cost),
	)
}

// readJobID consumes the argument line and parses it; uuid.Nil marks an
// unparseable id so the caller replies JOB_NOT_FOUND instead of dropping the
// connection.
func (s *ClientSession) readJobID() (uuid.UUID, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		return uuid.Nil, err
	}
	jobID, err := uuid.Parse(strings.TrimSpace(line))
	if err != nil {
		return uuid.Nil, nil
	}
	return jobID, nil
}

func billLines(job core.Job) []string {
	var start, end time.Time
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	if job.EndedAt != nil {
		end = *job.EndedAt
	}
	return []string{
		protocol.ReplyBillInfo,
		job.ID.String(),
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
		fmt.Sprintf("$%.2f", core.Cost(start, end)),
	}
}
