package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/shared/config"
)

// mockLogger is a no-op logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Fatal(msg string, args ...any) {}

type mockView struct {
	jobs    []core.Job
	workers []core.Worker
}

func (v *mockView) Jobs() []core.Job       { return v.jobs }
func (v *mockView) Workers() []core.Worker { return v.workers }
func (v *mockView) QueueLen() int          { return 0 }

func (v *mockView) CheckStatus(jobID uuid.UUID) (core.Job, error) {
	for _, job := range v.jobs {
		if job.ID == jobID {
			return job, nil
		}
	}
	return core.Job{}, core.ErrJobNotFound
}

func completedJob() core.Job {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(125 * time.Second)
	return core.Job{
		ID:        uuid.New(),
		Owner:     "alice@example.com",
		Status:    core.JobStatusCompleted,
		OutputDir: "out",
		StartedAt: &start,
		EndedAt:   &end,
	}
}

func newTestServer(view *mockView) *Server {
	return NewServer(config.RESTConfig{Addr: ":0"}, view, &mockLogger{})
}

func TestListJobs(t *testing.T) {
	view := &mockView{jobs: []core.Job{completedJob(), {ID: uuid.New(), Status: core.JobStatusPending}}}
	server := newTestServer(view)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ListJobsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Total != 2 || len(resp.Jobs) != 2 {
		t.Errorf("total = %d, jobs = %d; want 2 each", resp.Total, len(resp.Jobs))
	}
}

func TestGetJob(t *testing.T) {
	job := completedJob()
	server := newTestServer(&mockView{jobs: []core.Job{job}})

	t.Run("completed job includes cost", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
		rec := httptest.NewRecorder()
		server.httpServer.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp JobResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
		if resp.ID != job.ID.String() || resp.Status != "COMPLETED" {
			t.Errorf("response = %+v", resp)
		}
		if resp.Cost == nil || *resp.Cost != 1.25 {
			t.Errorf("cost = %v, want 1.25", resp.Cost)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		server.httpServer.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		server.httpServer.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListWorkers(t *testing.T) {
	jobID := uuid.New()
	view := &mockView{workers: []core.Worker{{
		ID:                 uuid.New(),
		Available:          false,
		CurrentJob:         &jobID,
		CompletedJobs:      2,
		TotalExecutionTime: 4 * time.Second,
	}}}
	server := newTestServer(view)

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ListWorkersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	worker := resp.Workers[0]
	if worker.Available || worker.CurrentJob != jobID.String() {
		t.Errorf("worker = %+v", worker)
	}
	if worker.LoadFactor != 2000 {
		t.Errorf("load factor = %v, want 2000", worker.LoadFactor)
	}
}
