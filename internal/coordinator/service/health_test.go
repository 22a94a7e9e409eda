package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockFailureHandler struct {
	mu      sync.Mutex
	stale   []uuid.UUID
	handled []uuid.UUID
}

func (m *mockFailureHandler) StaleWorkerIDs(timeout time.Duration) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID{}, m.stale...)
}

func (m *mockFailureHandler) HandleWorkerFailure(workerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled = append(m.handled, workerID)
	// A handled worker is no longer stale.
	for i, id := range m.stale {
		if id == workerID {
			m.stale = append(m.stale[:i], m.stale[i+1:]...)
			break
		}
	}
}

func (m *mockFailureHandler) handledIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID{}, m.handled...)
}

type mockLoggerForHealth struct{}

func (m *mockLoggerForHealth) Debug(msg string, args ...any) {}
func (m *mockLoggerForHealth) Info(msg string, args ...any)  {}
func (m *mockLoggerForHealth) Warn(msg string, args ...any)  {}
func (m *mockLoggerForHealth) Error(msg string, args ...any) {}
func (m *mockLoggerForHealth) Fatal(msg string, args ...any) {}

func TestWorkerHealthCheckerRemovesStaleWorkers(t *testing.T) {
	staleID := uuid.New()
	handler := &mockFailureHandler{stale: []uuid.UUID{staleID}}
	checker := NewWorkerHealthChecker(
		10*time.Millisecond, time.Second, handler, &mockLoggerForHealth{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go checker.Start(ctx)

	deadline := time.After(time.Second)
	for {
		if ids := handler.handledIDs(); len(ids) > 0 {
			if ids[0] != staleID {
				t.Fatalf("handled worker %s, want %s", ids[0], staleID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("stale worker never handled")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerHealthCheckerStopsOnContextCancel(t *testing.T) {
	handler := &mockFailureHandler{}
	checker := NewWorkerHealthChecker(
		5*time.Millisecond, time.Second, handler, &mockLoggerForHealth{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health checker did not stop after cancellation")
	}
}
