// Package client implements the coordinator's client-side control protocol:
// account registration, login, job submission with the upload handshake,
// status polling, cancellation and billing. A Client owns one control
// connection and is not safe for concurrent use; the protocol itself is
// strictly sequential per connection.
package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
	"github.com/nemanja-m/jobgrid/internal/shared/transfer"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmailNotFound     = errors.New("email not registered")
	ErrLoginFailed       = errors.New("wrong password")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job is no longer cancellable")
	ErrWorkerNotFound    = errors.New("assigned worker is gone")
	ErrJobNotBillable    = errors.New("job is not billable")
)

const defaultTransferTimeout = 30 * time.Second

type Client struct {
	conn            *protocol.LineConn
	transferTimeout time.Duration
}

// Bill is a parsed GET_BILL reply.
type Bill struct {
	JobID     uuid.UUID
	StartedAt time.Time
	EndedAt   time.Time
	Cost      float64
}

// Status is a parsed CHECK_STATUS reply. OutputDir and BillInfo are set only
// for completed jobs.
type Status struct {
	State     string
	OutputDir string
	BillInfo  *Bill
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to coordinator: %w", err)
	}
	return &Client{
		conn:            protocol.NewLineConn(conn),
		transferTimeout: defaultTransferTimeout,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Register creates an account and returns the generated password.
func (c *Client) Register(email string) (string, error) {
	if err := c.conn.WriteLines(protocol.CmdRegister, email); err != nil {
		return "", err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	if reply != protocol.ReplyValidEmail {
		return "", ErrInvalidEmail
	}
	return c.conn.ReadLine()
}

func (c *Client) Login(email, password string) error {
	if err := c.conn.WriteLines(protocol.CmdLogin, email); err != nil {
		return err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return err
	}
	if reply != protocol.ReplyEmailFound {
		return ErrEmailNotFound
	}

	if err := c.conn.WriteLines(password); err != nil {
		return err
	}
	reply, err = c.conn.ReadLine()
	if err != nil {
		return err
	}
	if reply != protocol.ReplyLoginSuccess {
		return ErrLoginFailed
	}
	return nil
}

// Submit submits a job and carries it through the upload handshake: it waits
// for the assigned worker's upload endpoint, streams the script and every
// regular file in dataDir, and returns once the worker confirms receipt. The
// wait can span a scale-out, so it is bounded only by the coordinator.
func (c *Client) Submit(scriptPath, dataDir, outputDir string) (uuid.UUID, error) {
	dataFiles, err := transfer.ListDir(dataDir)
	if err != nil {
		return uuid.Nil, fmt.Errorf("listing data files: %w", err)
	}

	if err := c.conn.WriteLines(protocol.CmdSubmitJob, scriptPath, dataDir, outputDir); err != nil {
		return uuid.Nil, err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return uuid.Nil, err
	}
	if reply == protocol.ReplyNotLoggedIn {
		return uuid.Nil, ErrNotLoggedIn
	}
	if reply != protocol.ReplyJobSubmitted {
		return uuid.Nil, fmt.Errorf("unexpected reply %q", reply)
	}
	idLine, err := c.conn.ReadLine()
	if err != nil {
		return uuid.Nil, err
	}
	jobID, err := uuid.Parse(strings.TrimSpace(idLine))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing job id %q: %w", idLine, err)
	}

	if err := c.uploadInputs(scriptPath, dataFiles); err != nil {
		return jobID, err
	}
	return jobID, nil
}

func (c *Client) uploadInputs(scriptPath string, dataFiles []string) error {
	addr, err := c.awaitTransferEndpoint(protocol.ReplyFileTransferPort)
	if err != nil {
		return err
	}

	dataConn, err := net.DialTimeout("tcp", addr, c.transferTimeout)
	if err != nil {
		return fmt.Errorf("connecting to upload endpoint: %w", err)
	}
	defer dataConn.Close()

	if err := transfer.SendUpload(dataConn, scriptPath, dataFiles, c.transferTimeout); err != nil {
		return err
	}

	reply, err := c.conn.ReadLine()
	if err != nil {
		return err
	}
	if reply != protocol.ReplyFilesReceived {
		return fmt.Errorf("unexpected reply %q, want %s", reply, protocol.ReplyFilesReceived)
	}
	return nil
}

// AwaitOutputs blocks until the worker announces its download endpoint, then
// reads every output file into destDir and returns the written paths. Jobs
// that produce no output never announce an endpoint; bound the wait by closing
// the client from another goroutine or by polling Status instead.
func (c *Client) AwaitOutputs(destDir string) ([]string, error) {
	addr, err := c.awaitTransferEndpoint(protocol.ReplyOutputTransferPort)
	if err != nil {
		return nil, err
	}

	outConn, err := net.DialTimeout("tcp", addr, c.transferTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to download endpoint: %w", err)
	}
	defer outConn.Close()

	return transfer.ReceiveFiles(outConn, destDir, c.transferTimeout)
}

func (c *Client) awaitTransferEndpoint(token string) (string, error) {
	reply, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	if reply != token {
		return "", fmt.Errorf("unexpected reply %q, want %s", reply, token)
	}
	host, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	portLine, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(strings.TrimSpace(portLine))
	if err != nil {
		return "", fmt.Errorf("parsing transfer port %q: %w", portLine, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// Status fetches the current state of a job. Completed jobs include the
// output location and the final bill.
func (c *Client) Status(jobID uuid.UUID) (Status, error) {
	if err := c.conn.WriteLines(protocol.CmdCheckStatus, jobID.String()); err != nil {
		return Status{}, err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return Status{}, err
	}
	if reply != protocol.ReplyJobFound {
		return Status{}, ErrJobNotFound
	}

	state, err := c.conn.ReadLine()
	if err != nil {
		return Status{}, err
	}
	status := Status{State: state}
	if state != string(core.JobStatusCompleted) {
		return status, nil
	}

	if _, err := c.expect(protocol.ReplyOutputLocation); err != nil {
		return status, err
	}
	if status.OutputDir, err = c.conn.ReadLine(); err != nil {
		return status, err
	}
	bill, err := c.readBill()
	if err != nil {
		return status, err
	}
	status.BillInfo = &bill
	return status, nil
}

// Cancel cancels a pending or processing job.
func (c *Client) Cancel(jobID uuid.UUID) error {
	if err := c.conn.WriteLines(protocol.CmdCancelJob, jobID.String()); err != nil {
		return err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return err
	}
	switch reply {
	case protocol.ReplyJobCancelled:
		return nil
	case protocol.ReplyWorkerNotFound:
		return ErrWorkerNotFound
	case protocol.ReplyJobNotCancellable:
		return ErrJobNotCancellable
	default:
		return ErrJobNotFound
	}
}

// GetBill fetches the bill for a completed job.
func (c *Client) GetBill(jobID uuid.UUID) (Bill, error) {
	if err := c.conn.WriteLines(protocol.CmdGetBill, jobID.String()); err != nil {
		return Bill{}, err
	}
	reply, err := c.conn.ReadLine()
	if err != nil {
		return Bill{}, err
	}
	switch reply {
	case protocol.ReplyBillInfo:
		return c.readBillBody()
	case protocol.ReplyJobNotBillable:
		return Bill{}, ErrJobNotBillable
	default:
		return Bill{}, ErrJobNotFound
	}
}

func (c *Client) readBill() (Bill, error) {
	if _, err := c.expect(protocol.ReplyBillInfo); err != nil {
		return Bill{}, err
	}
	return c.readBillBody()
}

func (c *Client) readBillBody() (Bill, error) {
	idLine, err := c.conn.ReadLine()
	if err != nil {
		return Bill{}, err
	}
	startLine, err := c.conn.ReadLine()
	if err != nil {
		return Bill{}, err
	}
	endLine, err := c.conn.ReadLine()
	if err != nil {
		return Bill{}, err
	}
	costLine, err := c.conn.ReadLine()
	if err != nil {
		return Bill{}, err
	}

	var bill Bill
	if bill.JobID, err = uuid.Parse(strings.TrimSpace(idLine)); err != nil {
		return Bill{}, fmt.Errorf("parsing bill job id: %w", err)
	}
	if bill.StartedAt, err = time.Parse(time.RFC3339, startLine); err != nil {
		return Bill{}, fmt.Errorf("parsing bill start time: %w", err)
	}
	if bill.EndedAt, err = time.Parse(time.RFC3339, endLine); err != nil {
		return Bill{}, fmt.Errorf("parsing bill end time: %w", err)
	}
	cost := strings.TrimPrefix(strings.TrimSpace(costLine), "$")
	if bill.Cost, err = strconv.ParseFloat(cost, 64); err != nil {
		return Bill{}, fmt.Errorf("parsing bill cost: %w", err)
	}
	return bill, nil
}

func (c *Client) expect(token string) (string, error) {
	reply, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	if reply != token {
		return reply, fmt.Errorf("unexpected reply %q, want %s", reply, token)
	}
	return reply, nil
}
