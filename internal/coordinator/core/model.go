package core

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s != JobStatusPending && s != JobStatusProcessing
}

// CanTransitionTo enumerates the job state machine:
//
//	PENDING    -> PROCESSING | CANCELLED
//	PROCESSING -> COMPLETED | FAILED | CANCELLED | PENDING (worker lost, retry)
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed ||
			next == JobStatusCancelled || next == JobStatusPending
	default:
		return false
	}
}

// MaxRetries caps worker-failure-triggered requeues per job.
const MaxRetries = 3

type Job struct {
	ID         uuid.UUID
	Owner      string
	ScriptPath string
	DataDir    string
	OutputDir  string
	Status     JobStatus

	SubmittedAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time

	AssignedWorker *uuid.UUID
	RetryCount     int
	ExecutionTime  time.Duration
}

// Bill is derived from a completed job; cost is never stored on the job.
type Bill struct {
	JobID     uuid.UUID
	StartedAt time.Time
	EndedAt   time.Time
	Cost      float64
}

// Cost charges $0.01 per second of wall time, zero when end precedes start.
func Cost(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Seconds() * 0.01
}

// ControlSender is the worker's control connection as seen by the scheduler.
// Close terminates the session of a worker evicted from the registry.
type ControlSender interface {
	WriteLines(lines ...string) error
	RemoteHost() string
	Close() error
}

type Worker struct {
	ID   uuid.UUID
	Conn ControlSender

	Available  bool
	CurrentJob *uuid.UUID

	CompletedJobs      int
	TotalExecutionTime time.Duration
	LastHeartbeatAt    time.Time
}

// LoadFactor is the worker's historical average execution time. Workers with
// no completed jobs score zero so fresh workers win over historically slow
// ones.
func (w *Worker) LoadFactor() float64 {
	if w.CompletedJobs == 0 {
		return 0
	}
	return float64(w.TotalExecutionTime.Milliseconds()) / float64(w.CompletedJobs)
}

type User struct {
	Email    string
	Password string
}
