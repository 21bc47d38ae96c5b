package glue

import (
	"context"
	"strings"
)

// StatementState is the lifecycle state Glue reports for one statement.
type StatementState string

const (
	StateWaiting    StatementState = "WAITING"
	StateRunning    StatementState = "RUNNING"
	StateAvailable  StatementState = "AVAILABLE"
	StateCancelling StatementState = "CANCELLING"
	StateCancelled  StatementState = "CANCELLED"
	StateError      StatementState = "ERROR"
)

// Terminal reports whether the state is final. AVAILABLE is the success
// terminal; CANCELLED and ERROR are failure terminals.
func (s StatementState) Terminal() bool {
	return s == StateAvailable || s == StateCancelled || s == StateError
}

// SessionState is the lifecycle state of an interactive session.
type SessionState string

const (
	SessionProvisioning SessionState = "PROVISIONING"
	SessionReady        SessionState = "READY"
	SessionFailed       SessionState = "FAILED"
	SessionStopping     SessionState = "STOPPING"
	SessionStopped      SessionState = "STOPPED"
	SessionTimeout      SessionState = "TIMEOUT"
)

// Statement is the polled view of one submitted statement.
type Statement struct {
	ID     int32
	State  StatementState
	Output *Output
}

// Output is the embedded payload Glue attaches to a finished statement.
type Output struct {
	Status     string
	Data       string
	ErrorName  string
	ErrorValue string
	Traceback  []string
}

// IsError reports whether a nominally successful statement actually failed
// inside the interpreter. Glue signals this through the output status rather
// than the statement state.
func (o *Output) IsError() bool {
	return o != nil && strings.EqualFold(o.Status, "error")
}

// CreateSessionRequest carries the provisioning knobs for a new interactive
// session.
type CreateSessionRequest struct {
	ID                 string
	RoleArn            string
	GlueVersion        string
	WorkerType         string
	NumberOfWorkers    int32
	IdleTimeoutMinutes int32
	DefaultArguments   map[string]string
}

// SessionAPI is the subset of the Glue service the adapter talks to. The
// production implementation wraps the AWS SDK client; tests substitute
// function-field mocks.
type SessionAPI interface {
	RunStatement(ctx context.Context, sessionID, code string) (int32, error)
	GetStatement(ctx context.Context, sessionID string, statementID int32) (*Statement, error)
	CreateSession(ctx context.Context, req CreateSessionRequest) (string, error)
	GetSessionState(ctx context.Context, sessionID string) (SessionState, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
