package server

import (
	"net"
	"testing"
	"time"

	"github.com/nemanja-m/jobgrid/internal/coordinator/scheduler"
	"github.com/nemanja-m/jobgrid/internal/coordinator/service"
	"github.com/nemanja-m/jobgrid/internal/coordinator/storage"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// mockLogger is a no-op logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Fatal(msg string, args ...any) {}

type noopLauncher struct{}

func (noopLauncher) Launch() error { return nil }

type sessionEnv struct {
	sched    *scheduler.Scheduler
	auth     *service.AuthService
	sessions *SessionRegistry
	registry *storage.InMemoryWorkerRegistry
}

// newSessionEnv wires a real scheduler with no worker capacity so submitted
// jobs stay PENDING unless the test registers a worker.
func newSessionEnv() *sessionEnv {
	logger := &mockLogger{}
	registry := storage.NewInMemoryWorkerRegistry()
	sched := scheduler.New(
		storage.NewInMemoryJobStore(),
		registry,
		noopLauncher{},
		scheduler.Config{MaxWorkers: 0, ScaleOutWait: 10 * time.Millisecond},
		logger,
	)
	return &sessionEnv{
		sched:    sched,
		auth:     service.NewAuthService(storage.NewInMemoryUserStore(), logger),
		sessions: NewSessionRegistry(),
		registry: registry,
	}
}

// startClientSession runs a client session over a pipe and returns the
// client's end.
func (e *sessionEnv) startClientSession(t *testing.T) *protocol.LineConn {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close() })

	session := NewClientSession(
		protocol.NewLineConn(serverSide), e.sched, e.auth, e.sessions, &mockLogger{})
	go session.Run()
	return protocol.NewLineConn(clientSide)
}

func readLine(t *testing.T, conn *protocol.LineConn) string {
	t.Helper()
	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() error = %v", err)
	}
	return line
}

func expectLine(t *testing.T, conn *protocol.LineConn, want string) {
	t.Helper()
	if got := readLine(t, conn); got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

// registerAndLogin drives the full credential exchange and returns nothing;
// the session is left logged in.
func registerAndLogin(t *testing.T, conn *protocol.LineConn, email string) {
	t.Helper()
	conn.WriteLines(protocol.CmdRegister, email)
	expectLine(t, conn, protocol.ReplyValidEmail)
	password := readLine(t, conn)

	conn.WriteLines(protocol.CmdLogin, email)
	expectLine(t, conn, protocol.ReplyEmailFound)
	conn.WriteLines(password)
	expectLine(t, conn, protocol.ReplyLoginSuccess)
}

func TestClientSessionLifecycle(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	registerAndLogin(t, conn, "alice@example.com")

	conn.WriteLines(protocol.CmdSubmitJob, "script.py", "data", "out")
	expectLine(t, conn, protocol.ReplyJobSubmitted)
	jobID := readLine(t, conn)

	conn.WriteLines(protocol.CmdCheckStatus, jobID)
	expectLine(t, conn, protocol.ReplyJobFound)
	expectLine(t, conn, "PENDING")

	conn.WriteLines(protocol.CmdGetBill, jobID)
	expectLine(t, conn, protocol.ReplyJobNotBillable)

	conn.WriteLines(protocol.CmdCancelJob, jobID)
	expectLine(t, conn, protocol.ReplyJobCancelled)

	conn.WriteLines(protocol.CmdCheckStatus, jobID)
	expectLine(t, conn, protocol.ReplyJobFound)
	expectLine(t, conn, "CANCELLED")
}

func TestClientSessionRegisterInvalidEmail(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines(protocol.CmdRegister, "not-an-email")
	expectLine(t, conn, protocol.ReplyInvalidEmail)
}

func TestClientSessionLoginUnknownEmail(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines(protocol.CmdLogin, "ghost@example.com")
	expectLine(t, conn, protocol.ReplyEmailNotFound)
}

func TestClientSessionLoginWrongPassword(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines(protocol.CmdRegister, "alice@example.com")
	expectLine(t, conn, protocol.ReplyValidEmail)
	readLine(t, conn)

	conn.WriteLines(protocol.CmdLogin, "alice@example.com")
	expectLine(t, conn, protocol.ReplyEmailFound)
	conn.WriteLines("wrong-password")
	expectLine(t, conn, protocol.ReplyLoginFailed)
}

func TestClientSessionSubmitRequiresLogin(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines(protocol.CmdSubmitJob)
	expectLine(t, conn, protocol.ReplyNotLoggedIn)
}

func TestClientSessionUnknownCommand(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines("FROBNICATE")
	expectLine(t, conn, protocol.ReplyUnknownCommand)
}

func TestClientSessionUnknownJobID(t *testing.T) {
	env := newSessionEnv()
	conn := env.startClientSession(t)

	conn.WriteLines(protocol.CmdCheckStatus, "not-a-uuid")
	expectLine(t, conn, protocol.ReplyJobNotFound)
}
