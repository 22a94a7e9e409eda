package server

import (
	"errors"
	"net"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/coordinator/scheduler"
	"github.com/nemanja-m/jobgrid/internal/coordinator/service"
	"github.com/nemanja-m/jobgrid/internal/shared/config"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// Server owns the two control-plane listeners: one accepting client
// connections, one accepting worker connections. Each accepted connection
// gets its own session goroutine; all shared state sits behind the scheduler.
type Server struct {
	cfg       config.ListenersConfig
	scheduler *scheduler.Scheduler
	auth      *service.AuthService
	sessions  *SessionRegistry
	logger    logging.Logger

	clientLn net.Listener
	workerLn net.Listener
}

func NewServer(
	cfg config.ListenersConfig,
	sched *scheduler.Scheduler,
	auth *service.AuthService,
	logger logging.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		scheduler: sched,
		auth:      auth,
		sessions:  NewSessionRegistry(),
		logger:    logger,
	}
}

// Start opens both listeners and spawns their accept loops. It returns once
// listening; Stop shuts the loops down.
func (s *Server) Start() error {
	clientLn, err := net.Listen("tcp", s.cfg.ClientAddr)
	if err != nil {
		return err
	}
	workerLn, err := net.Listen("tcp", s.cfg.WorkerAddr)
	if err != nil {
		clientLn.Close()
		return err
	}
	s.clientLn = clientLn
	s.workerLn = workerLn

	s.logger.Info("Listening for clients", "addr", clientLn.Addr().String())
	s.logger.Info("Listening for workers", "addr", workerLn.Addr().String())

	go s.acceptLoop(clientLn, s.handleClientConn)
	go s.acceptLoop(workerLn, s.handleWorkerConn)
	return nil
}

func (s *Server) Stop() {
	if s.clientLn != nil {
		s.clientLn.Close()
	}
	if s.workerLn != nil {
		s.workerLn.Close()
	}
}

// ClientAddr returns the bound client listener address, useful when the
// configured port is ephemeral.
func (s *Server) ClientAddr() net.Addr {
	return s.clientLn.Addr()
}

// WorkerAddr returns the bound worker listener address.
func (s *Server) WorkerAddr() net.Addr {
	return s.workerLn.Addr()
}

func (s *Server) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept connection", "error", err)
			continue
		}
		go handle(conn)
	}
}

func (s *Server) handleClientConn(conn net.Conn) {
	s.logger.Info("Client connected", "remote_addr", conn.RemoteAddr().String())
	session := NewClientSession(protocol.NewLineConn(conn), s.scheduler, s.auth, s.sessions, s.logger)
	session.Run()
}

func (s *Server) handleWorkerConn(conn net.Conn) {
	workerID := uuid.New()
	lineConn := protocol.NewLineConn(conn)

	worker := &core.Worker{ID: workerID, Conn: lineConn}
	if err := s.scheduler.RegisterWorker(worker); err != nil {
		s.logger.Error("Failed to register worker", "worker_id", workerID, "error", err)
		conn.Close()
		return
	}
	s.logger.Info("Worker connected",
		"worker_id", workerID, "remote_addr", conn.RemoteAddr().String())

	session := NewWorkerSession(workerID, lineConn, s.scheduler, s.sessions, s.logger)
	session.Run()
}
