// Package gluetest provides a function-field fake of the Glue session API
// for tests in other packages.
package gluetest

import (
	"context"
	"sync"

	"github.com/akmalsoliev/dbt-glue/internal/glue"
)

// FakeAPI implements glue.SessionAPI. Unset function fields fall back to
// benign defaults; calls are counted so tests can assert ordering and
// exactly-once behavior.
type FakeAPI struct {
	mu sync.Mutex

	RunStatementFunc    func(ctx context.Context, sessionID, code string) (int32, error)
	GetStatementFunc    func(ctx context.Context, sessionID string, statementID int32) (*glue.Statement, error)
	CreateSessionFunc   func(ctx context.Context, req glue.CreateSessionRequest) (string, error)
	GetSessionStateFunc func(ctx context.Context, sessionID string) (glue.SessionState, error)
	DeleteSessionFunc   func(ctx context.Context, sessionID string) error

	RunCalls    []string // submitted code, in order
	PollCalls   int
	DeleteCalls int
}

var _ glue.SessionAPI = (*FakeAPI)(nil)

func (f *FakeAPI) RunStatement(ctx context.Context, sessionID, code string) (int32, error) {
	f.mu.Lock()
	f.RunCalls = append(f.RunCalls, code)
	n := len(f.RunCalls)
	f.mu.Unlock()
	if f.RunStatementFunc != nil {
		return f.RunStatementFunc(ctx, sessionID, code)
	}
	return int32(n), nil
}

func (f *FakeAPI) GetStatement(ctx context.Context, sessionID string, statementID int32) (*glue.Statement, error) {
	f.mu.Lock()
	f.PollCalls++
	f.mu.Unlock()
	if f.GetStatementFunc != nil {
		return f.GetStatementFunc(ctx, sessionID, statementID)
	}
	return &glue.Statement{ID: statementID, State: glue.StateAvailable, Output: &glue.Output{Status: "ok"}}, nil
}

func (f *FakeAPI) CreateSession(ctx context.Context, req glue.CreateSessionRequest) (string, error) {
	if f.CreateSessionFunc != nil {
		return f.CreateSessionFunc(ctx, req)
	}
	return req.ID, nil
}

func (f *FakeAPI) GetSessionState(ctx context.Context, sessionID string) (glue.SessionState, error) {
	if f.GetSessionStateFunc != nil {
		return f.GetSessionStateFunc(ctx, sessionID)
	}
	return glue.SessionReady, nil
}

func (f *FakeAPI) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.DeleteCalls++
	f.mu.Unlock()
	if f.DeleteSessionFunc != nil {
		return f.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}
