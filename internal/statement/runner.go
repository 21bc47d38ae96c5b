package statement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/akmalsoliev/dbt-glue/internal/glue"
	"github.com/akmalsoliev/dbt-glue/internal/metrics"
)

// Default bounds for one statement execution.
const (
	DefaultTimeout      = time.Hour
	DefaultPollInterval = 10 * time.Second
)

// Config bounds the poll loop for one statement. Immutable per run.
type Config struct {
	// Timeout is the wall-clock budget for the statement to reach a terminal
	// state. Zero or negative falls back to DefaultTimeout.
	Timeout time.Duration
	// PollInterval is the sleep between status fetches. Zero or negative
	// falls back to DefaultPollInterval.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Client is the slice of the session API the runner needs.
type Client interface {
	RunStatement(ctx context.Context, sessionID, code string) (int32, error)
	GetStatement(ctx context.Context, sessionID string, statementID int32) (*glue.Statement, error)
}

// TimeoutError reports that the poll loop gave up waiting. The remote
// statement may still be running; the contract is only that the caller stops
// waiting.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for statement to complete after %s", e.Timeout)
}

// StateError reports a failure terminal state (ERROR or CANCELLED).
type StateError struct {
	State glue.StatementState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("statement execution failed with state: %s", e.State)
}

// OutputError reports an AVAILABLE statement whose embedded output carries an
// interpreter error.
type OutputError struct {
	ErrorName  string
	ErrorValue string
	Traceback  []string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s\n%s\n%s", e.ErrorName, e.ErrorValue, strings.Join(e.Traceback, "\n"))
}

// Runner submits statements to one Glue session and waits for them to finish.
// It issues exactly one statement at a time; there is no concurrency and no
// retry.
type Runner struct {
	client Client
	cfg    Config
	logger *slog.Logger

	// injected in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner with defaults applied to the config.
func NewRunner(client Client, cfg Config) *Runner {
	return &Runner{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Submit sends one code fragment to the session and returns the statement id.
// Submission is a single call; failures propagate without retry.
func (r *Runner) Submit(ctx context.Context, sessionID, code string) (int32, error) {
	id, err := r.client.RunStatement(ctx, sessionID, code)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("statement submitted", "session_id", sessionID, "statement_id", id)
	return id, nil
}

// Await blocks until the statement reaches a terminal state or the configured
// timeout lapses. On AVAILABLE the embedded output is inspected: an output
// status of "error" (case-insensitive) is a failure carrying the interpreter
// error; anything else is success and the output is returned.
func (r *Runner) Await(ctx context.Context, sessionID string, statementID int32) (*glue.Output, error) {
	start := r.now()
	for r.now().Sub(start) < r.cfg.Timeout {
		st, err := r.client.GetStatement(ctx, sessionID, statementID)
		if err != nil {
			return nil, err
		}
		metrics.Default().PollCycles.Inc()

		switch st.State {
		case glue.StateAvailable:
			if st.Output.IsError() {
				r.logger.Debug("statement output", "session_id", sessionID, "statement_id", statementID, "output", st.Output)
				return nil, &OutputError{
					ErrorName:  st.Output.ErrorName,
					ErrorValue: st.Output.ErrorValue,
					Traceback:  st.Output.Traceback,
				}
			}
			r.logger.Debug("statement completed", "session_id", sessionID, "statement_id", statementID)
			return st.Output, nil
		case glue.StateCancelled, glue.StateError:
			return nil, &StateError{State: st.State}
		}

		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
	return nil, &TimeoutError{Timeout: r.cfg.Timeout}
}

// Run submits code and waits for completion. kind labels the statement in
// metrics ("install" or "model").
func (r *Runner) Run(ctx context.Context, sessionID, code, kind string) (*glue.Output, error) {
	m := metrics.Default()
	m.StatementsSubmitted.WithLabelValues(kind).Inc()
	start := r.now()

	id, err := r.Submit(ctx, sessionID, code)
	if err != nil {
		m.StatementsFailed.WithLabelValues(kind, "submit").Inc()
		return nil, err
	}

	out, err := r.Await(ctx, sessionID, id)
	m.StatementDuration.WithLabelValues(kind).Observe(r.now().Sub(start).Seconds())
	if err != nil {
		m.StatementsFailed.WithLabelValues(kind, failureReason(err)).Inc()
		return nil, err
	}
	return out, nil
}

func failureReason(err error) string {
	switch err.(type) {
	case *TimeoutError:
		return "timeout"
	case *StateError:
		return "state"
	case *OutputError:
		return "output"
	default:
		return "transport"
	}
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
