package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/shared/config"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

// SchedulerView is the read-only scheduler surface the API exposes. No
// mutation goes through HTTP; submissions and cancellations belong to the
// control-plane protocol.
type SchedulerView interface {
	Jobs() []core.Job
	Workers() []core.Worker
	CheckStatus(jobID uuid.UUID) (core.Job, error)
	QueueLen() int
}

type Server struct {
	httpServer *http.Server
	view       SchedulerView
	logger     logging.Logger
}

func NewServer(cfg config.RESTConfig, view SchedulerView, logger logging.Logger) *Server {
	s := &Server{view: view, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs", s.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.getJob)
	mux.HandleFunc("GET /api/workers", s.listWorkers)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(s.withRecovery(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting observability API", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.view.Jobs()
	resp := ListJobsResponse{
		Jobs:   make([]JobResponse, 0, len(jobs)),
		Total:  len(jobs),
		Queued: s.view.QueueLen(),
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(job))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid job id", err.Error())
		return
	}
	job, err := s.view.CheckStatus(jobID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "job not found", "")
		return
	}
	s.respondJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	workers := s.view.Workers()
	resp := ListWorkersResponse{Workers: make([]WorkerResponse, 0, len(workers)), Total: len(workers)}
	for _, worker := range workers {
		resp.Workers = append(resp.Workers, toWorkerResponse(worker))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func toJobResponse(job core.Job) JobResponse {
	resp := JobResponse{
		ID:          job.ID.String(),
		Owner:       job.Owner,
		Status:      string(job.Status),
		ScriptPath:  job.ScriptPath,
		DataDir:     job.DataDir,
		OutputDir:   job.OutputDir,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		EndedAt:     job.EndedAt,
		RetryCount:  job.RetryCount,
	}
	if job.AssignedWorker != nil {
		resp.AssignedWorker = job.AssignedWorker.String()
	}
	if job.Status == core.JobStatusCompleted && job.StartedAt != nil && job.EndedAt != nil {
		cost := core.Cost(*job.StartedAt, *job.EndedAt)
		resp.Cost = &cost
	}
	return resp
}

func toWorkerResponse(worker core.Worker) WorkerResponse {
	resp := WorkerResponse{
		ID:              worker.ID.String(),
		Available:       worker.Available,
		CompletedJobs:   worker.CompletedJobs,
		TotalTimeMs:     worker.TotalExecutionTime.Milliseconds(),
		LoadFactor:      worker.LoadFactor(),
		LastHeartbeatAt: worker.LastHeartbeatAt,
	}
	if worker.CurrentJob != nil {
		resp.CurrentJob = worker.CurrentJob.String()
	}
	return resp
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, details string) {
	s.respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}
