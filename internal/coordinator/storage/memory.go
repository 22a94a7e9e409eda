package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
)

// InMemoryJobStore keeps active jobs and terminal history in two maps. A job
// lives in exactly one of them; MoveToHistory relocates, never copies.
type InMemoryJobStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*core.Job
	history map[uuid.UUID]*core.Job
}

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs:    make(map[uuid.UUID]*core.Job),
		history: make(map[uuid.UUID]*core.Job),
	}
}

func (s *InMemoryJobStore) SaveJob(job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *InMemoryJobStore) GetJob(id uuid.UUID) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, core.ErrJobNotFound
	}
	return job, nil
}

func (s *InMemoryJobStore) ListJobs() ([]*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *InMemoryJobStore) MoveToHistory(job *core.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is %s, history holds terminal jobs only", job.ID, job.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, job.ID)
	s.history[job.ID] = job
	return nil
}

func (s *InMemoryJobStore) GetHistoryJob(id uuid.UUID) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.history[id]
	if !exists {
		return nil, core.ErrJobNotFound
	}
	return job, nil
}

func (s *InMemoryJobStore) ListHistory() ([]*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*core.Job, 0, len(s.history))
	for _, job := range s.history {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// InMemoryWorkerRegistry tracks connected workers keyed by ID.
type InMemoryWorkerRegistry struct {
	mu      sync.RWMutex
	workers map[uuid.UUID]*core.Worker
}

func NewInMemoryWorkerRegistry() *InMemoryWorkerRegistry {
	return &InMemoryWorkerRegistry{
		workers: make(map[uuid.UUID]*core.Worker),
	}
}

func (r *InMemoryWorkerRegistry) AddWorker(worker *core.Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker.Available = true
	worker.CurrentJob = nil
	if worker.LastHeartbeatAt.IsZero() {
		worker.LastHeartbeatAt = time.Now()
	}
	r.workers[worker.ID] = worker
	return nil
}

func (r *InMemoryWorkerRegistry) GetWorker(id uuid.UUID) (*core.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	worker, exists := r.workers[id]
	if !exists {
		return nil, core.ErrWorkerNotFound
	}
	return worker, nil
}

func (r *InMemoryWorkerRegistry) ListWorkers() ([]*core.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workers := make([]*core.Worker, 0, len(r.workers))
	for _, worker := range r.workers {
		workers = append(workers, worker)
	}
	return workers, nil
}

func (r *InMemoryWorkerRegistry) RemoveWorker(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
	return nil
}

func (r *InMemoryWorkerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

func (r *InMemoryWorkerRegistry) RecordHeartbeat(id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker, exists := r.workers[id]
	if !exists {
		return core.ErrWorkerNotFound
	}
	worker.LastHeartbeatAt = now
	return nil
}

func (r *InMemoryWorkerRegistry) MarkBusy(id, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker, exists := r.workers[id]
	if !exists {
		return core.ErrWorkerNotFound
	}
	worker.Available = false
	worker.CurrentJob = &jobID
	return nil
}

func (r *InMemoryWorkerRegistry) MarkAvailable(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker, exists := r.workers[id]
	if !exists {
		return core.ErrWorkerNotFound
	}
	worker.Available = true
	worker.CurrentJob = nil
	return nil
}

func (r *InMemoryWorkerRegistry) UpdateStats(id uuid.UUID, executionTime time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker, exists := r.workers[id]
	if !exists {
		return core.ErrWorkerNotFound
	}
	worker.CompletedJobs++
	worker.TotalExecutionTime += executionTime
	return nil
}

func (r *InMemoryWorkerRegistry) StaleWorkers(threshold time.Time) ([]*core.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []*core.Worker
	for _, worker := range r.workers {
		if worker.LastHeartbeatAt.Before(threshold) {
			stale = append(stale, worker)
		}
	}
	return stale, nil
}

// InMemoryUserStore is the trivial email -> credentials map.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*core.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users: make(map[string]*core.User),
	}
}

func (s *InMemoryUserStore) SaveUser(user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Email] = user
	return nil
}

func (s *InMemoryUserStore) GetUser(email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[email]
	if !exists {
		return nil, core.ErrEmailNotFound
	}
	return user, nil
}
