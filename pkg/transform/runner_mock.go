package transform

import (
	"context"
	"sync"
	"time"
)

// MockRunner is a mock implementation of Runner for testing
type MockRunner struct {
	mu sync.Mutex

	RunFunc func(ctx context.Context, dataset string, runDate time.Time) error

	Calls []RunCall
}

// RunCall records a Run call
type RunCall struct {
	Dataset string
	RunDate time.Time
}

// NewMockRunner creates a new mock runner
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run implements Runner
func (m *MockRunner) Run(ctx context.Context, dataset string, runDate time.Time) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, RunCall{Dataset: dataset, RunDate: runDate})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, dataset, runDate)
	}

	return nil
}

// Ensure MockRunner implements Runner
var _ Runner = (*MockRunner)(nil)
