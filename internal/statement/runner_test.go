package statement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmalsoliev/dbt-glue/internal/glue"
	"github.com/akmalsoliev/dbt-glue/internal/glue/gluetest"
)

// newTestRunner wires a runner to a fake clock: every poll sleep advances
// simulated time by the poll interval, so tests never block for real.
func newTestRunner(client Client, cfg Config) *Runner {
	r := NewRunner(client, cfg)
	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }
	r.sleep = func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return r
}

func TestAwaitSuccess(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateAvailable, Output: &glue.Output{Status: "ok", Data: "done"}}, nil
		},
	}
	r := newTestRunner(api, Config{})

	out, err := r.Await(context.Background(), "sess-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Data)
	assert.Equal(t, 1, api.PollCalls)
}

func TestAwaitPollsUntilAvailable(t *testing.T) {
	states := []glue.StatementState{glue.StateWaiting, glue.StateRunning, glue.StateRunning, glue.StateAvailable}
	api := &gluetest.FakeAPI{}
	api.GetStatementFunc = func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
		st := &glue.Statement{ID: id, State: states[api.PollCalls-1]}
		if st.State == glue.StateAvailable {
			st.Output = &glue.Output{Status: "ok"}
		}
		return st, nil
	}
	r := newTestRunner(api, Config{})

	_, err := r.Await(context.Background(), "sess-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, api.PollCalls)
}

func TestAwaitOutputError(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateAvailable, Output: &glue.Output{
				Status:     "ERROR",
				ErrorName:  "ValueError",
				ErrorValue: "bad input",
				Traceback:  []string{"line 1", "line 2"},
			}}, nil
		},
	}
	r := newTestRunner(api, Config{})

	_, err := r.Await(context.Background(), "sess-1", 1)
	var outErr *OutputError
	require.ErrorAs(t, err, &outErr)
	assert.Equal(t, "ValueError", outErr.ErrorName)
	assert.Contains(t, err.Error(), "bad input")
	assert.Contains(t, err.Error(), "line 2")
}

func TestAwaitFailureState(t *testing.T) {
	for _, state := range []glue.StatementState{glue.StateCancelled, glue.StateError} {
		t.Run(string(state), func(t *testing.T) {
			api := &gluetest.FakeAPI{
				GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
					return &glue.Statement{ID: id, State: state}, nil
				},
			}
			r := newTestRunner(api, Config{})

			_, err := r.Await(context.Background(), "sess-1", 1)
			var stateErr *StateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, state, stateErr.State)
			assert.Equal(t, 1, api.PollCalls)
		})
	}
}

func TestAwaitTimesOut(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateRunning}, nil
		},
	}
	r := newTestRunner(api, Config{Timeout: 55 * time.Second, PollInterval: 10 * time.Second})

	_, err := r.Await(context.Background(), "sess-1", 1)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Contains(t, err.Error(), "timed out")
	// Polls at t=0,10,...,50; the loop must give up within one interval of
	// the 55s budget.
	assert.Equal(t, 6, api.PollCalls)
}

func TestAwaitTransportErrorPropagates(t *testing.T) {
	boom := fmt.Errorf("connection reset")
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(context.Context, string, int32) (*glue.Statement, error) {
			return nil, boom
		},
	}
	r := newTestRunner(api, Config{})

	_, err := r.Await(context.Background(), "sess-1", 1)
	assert.ErrorIs(t, err, boom)
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateRunning}, nil
		},
	}
	r := NewRunner(api, Config{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Await(ctx, "sess-1", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmitNoRetry(t *testing.T) {
	api := &gluetest.FakeAPI{
		RunStatementFunc: func(context.Context, string, string) (int32, error) {
			return 0, errors.New("ThrottlingException")
		},
	}
	r := newTestRunner(api, Config{})

	_, err := r.Submit(context.Background(), "sess-1", "print(1)")
	assert.Error(t, err)
	assert.Len(t, api.RunCalls, 1)
}

func TestRunSubmitsThenAwaits(t *testing.T) {
	api := &gluetest.FakeAPI{}
	r := newTestRunner(api, Config{})

	out, err := r.Run(context.Background(), "sess-1", "print(1)", "model")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, []string{"print(1)"}, api.RunCalls)
	assert.Equal(t, 1, api.PollCalls)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)

	cfg = Config{Timeout: time.Minute, PollInterval: time.Second}.withDefaults()
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
}
