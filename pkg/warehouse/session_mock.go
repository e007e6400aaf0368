package warehouse

import (
	"context"
	"sync"
)

// MockSession is a mock implementation of Session for testing
type MockSession struct {
	mu sync.Mutex

	// Control behavior
	ExecuteFunc func(ctx context.Context, query string) error
	QueryFunc   func(ctx context.Context, query string) ([]Row, error)

	// Track calls for assertions
	Statements   []string
	TxStatements []string
	Commits      int
	Rollbacks    int
	Closed       bool
}

// NewMockSession creates a new mock session
func NewMockSession() *MockSession {
	return &MockSession{}
}

// Execute implements Executor
func (m *MockSession) Execute(ctx context.Context, query string) error {
	m.record(query, false)

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, query)
	}

	return nil
}

// Query implements Executor
func (m *MockSession) Query(ctx context.Context, query string) ([]Row, error) {
	m.record(query, false)

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, query)
	}

	return nil, nil
}

// InTx implements Session. Statements issued through tx are recorded in both
// Statements and TxStatements.
func (m *MockSession) InTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	if err := fn(ctx, &mockTx{session: m}); err != nil {
		m.mu.Lock()
		m.Rollbacks++
		m.mu.Unlock()

		return err
	}

	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()

	return nil
}

// Close implements Session
func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true

	return nil
}

// GetStatements returns a copy of every recorded statement
func (m *MockSession) GetStatements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.Statements))
	copy(out, m.Statements)

	return out
}

func (m *MockSession) record(query string, inTx bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Statements = append(m.Statements, query)
	if inTx {
		m.TxStatements = append(m.TxStatements, query)
	}
}

type mockTx struct {
	session *MockSession
}

func (t *mockTx) Execute(ctx context.Context, query string) error {
	t.session.record(query, true)

	if t.session.ExecuteFunc != nil {
		return t.session.ExecuteFunc(ctx, query)
	}

	return nil
}

func (t *mockTx) Query(ctx context.Context, query string) ([]Row, error) {
	t.session.record(query, true)

	if t.session.QueryFunc != nil {
		return t.session.QueryFunc(ctx, query)
	}

	return nil, nil
}

// MockFactory is a mock implementation of Factory for testing
type MockFactory struct {
	mu sync.Mutex

	AcquireFunc func(ctx context.Context) (Session, error)
	Session     *MockSession

	AcquireCalls int
}

// NewMockFactory creates a factory that hands out the given session
func NewMockFactory(session *MockSession) *MockFactory {
	return &MockFactory{Session: session}
}

// Acquire implements Factory
func (m *MockFactory) Acquire(ctx context.Context) (Session, error) {
	m.mu.Lock()
	m.AcquireCalls++
	m.mu.Unlock()

	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx)
	}

	return m.Session, nil
}

// Start implements ClientInterface
func (m *MockFactory) Start() error { return nil }

// Stop implements ClientInterface
func (m *MockFactory) Stop() error { return nil }

// Ensure mocks implement the interfaces
var (
	_ Session         = (*MockSession)(nil)
	_ ClientInterface = (*MockFactory)(nil)
)
