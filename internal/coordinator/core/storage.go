package core

import (
	"time"

	"github.com/google/uuid"
)

// JobStore holds active jobs and an immutable history of terminal jobs. Jobs
// are relocated from the active map to history, never deleted.
type JobStore interface {
	SaveJob(job *Job) error
	GetJob(id uuid.UUID) (*Job, error)
	ListJobs() ([]*Job, error)

	// MoveToHistory relocates a terminal job out of the active map. The
	// historical record is treated as read-only from then on.
	MoveToHistory(job *Job) error
	GetHistoryJob(id uuid.UUID) (*Job, error)
	ListHistory() ([]*Job, error)
}

// WorkerRegistry tracks connected workers. Every operation leaves Available
// and CurrentJob consistent: Available == (CurrentJob == nil).
type WorkerRegistry interface {
	AddWorker(worker *Worker) error
	GetWorker(id uuid.UUID) (*Worker, error)
	ListWorkers() ([]*Worker, error)
	RemoveWorker(id uuid.UUID) error
	Count() int

	RecordHeartbeat(id uuid.UUID, now time.Time) error
	MarkBusy(id, jobID uuid.UUID) error
	MarkAvailable(id uuid.UUID) error
	UpdateStats(id uuid.UUID, executionTime time.Duration) error
	StaleWorkers(threshold time.Time) ([]*Worker, error)
}

// UserStore is the trivial in-memory credential store. Credential handling is
// an external collaborator of the scheduler core; only "is this caller
// authenticated" leaks inward.
type UserStore interface {
	SaveUser(user *User) error
	GetUser(email string) (*User, error)
}
