package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmalsoliev/dbt-glue/internal/dbterrors"
	"github.com/akmalsoliev/dbt-glue/internal/glue"
	"github.com/akmalsoliev/dbt-glue/internal/glue/gluetest"
	"github.com/akmalsoliev/dbt-glue/internal/history"
	"github.com/akmalsoliev/dbt-glue/internal/model"
)

// spyConn satisfies SessionConn and counts releases.
type spyConn struct {
	api        *gluetest.FakeAPI
	cursorErr  error
	closeCalls int
}

func (s *spyConn) Cursor(context.Context) (string, error) {
	if s.cursorErr != nil {
		return "", s.cursorErr
	}
	return "sess-1", nil
}

func (s *spyConn) Client() glue.SessionAPI { return s.api }

func (s *spyConn) Close(context.Context) error {
	s.closeCalls++
	return nil
}

func testModel(pkgs ...string) *model.ParsedModel {
	return &model.ParsedModel{
		Alias:  "orders_enriched",
		Schema: "analytics",
		Config: model.Config{Packages: pkgs, Timeout: 30},
	}
}

func newTestHelper(m *model.ParsedModel, conn *spyConn, opts ...Option) *JobHelper {
	opts = append([]Option{
		WithPollInterval(time.Millisecond),
		WithConnector(func(context.Context) (SessionConn, error) { return conn, nil }),
	}, opts...)
	return NewJobHelper(m, nil, opts...)
}

func TestSubmitRunsInstallThenModel(t *testing.T) {
	conn := &spyConn{api: &gluetest.FakeAPI{}}
	h := newTestHelper(testModel("pandas"), conn)

	err := h.Submit(context.Background(), "def model(dbt, session):\n    pass\n")
	require.NoError(t, err)

	require.Len(t, conn.api.RunCalls, 2)
	assert.Contains(t, conn.api.RunCalls[0], "pip")
	assert.Contains(t, conn.api.RunCalls[0], `"pandas"`)
	assert.Contains(t, conn.api.RunCalls[1], "def model")
	assert.Equal(t, 1, conn.closeCalls)
}

func TestSubmitSkipsInstallWithoutPackages(t *testing.T) {
	conn := &spyConn{api: &gluetest.FakeAPI{}}
	h := newTestHelper(testModel(), conn)

	err := h.Submit(context.Background(), "print(1)")
	require.NoError(t, err)

	require.Len(t, conn.api.RunCalls, 1)
	assert.Equal(t, "print(1)", conn.api.RunCalls[0])
}

func TestSubmitMergesDeclaredAndScannedPackages(t *testing.T) {
	conn := &spyConn{api: &gluetest.FakeAPI{}}
	h := newTestHelper(testModel("a", "b"), conn)

	code := `dbt.config(packages=["b", "c"])`
	err := h.Submit(context.Background(), code)
	require.NoError(t, err)

	require.NotEmpty(t, conn.api.RunCalls)
	install := conn.api.RunCalls[0]
	assert.Equal(t, 1, strings.Count(install, `"a"`))
	assert.Equal(t, 1, strings.Count(install, `"b"`))
	assert.Equal(t, 1, strings.Count(install, `"c"`))
}

func TestSubmitInstallFailureAbortsModel(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateError}, nil
		},
	}
	conn := &spyConn{api: api}
	h := newTestHelper(testModel("pandas"), conn)

	err := h.Submit(context.Background(), "print(1)")
	require.Error(t, err)

	var runtimeErr *dbterrors.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, err.Error(), "python model execution failed")

	// The model statement must never have been submitted.
	require.Len(t, api.RunCalls, 1)
	assert.Contains(t, api.RunCalls[0], "pip")
	assert.Equal(t, 1, conn.closeCalls)
}

func TestSubmitModelOutputErrorSurfaces(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateAvailable, Output: &glue.Output{
				Status:     "ERROR",
				ErrorName:  "ZeroDivisionError",
				ErrorValue: "division by zero",
			}}, nil
		},
	}
	conn := &spyConn{api: api}
	h := newTestHelper(testModel(), conn)

	err := h.Submit(context.Background(), "1/0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZeroDivisionError")
	assert.Contains(t, err.Error(), "division by zero")
	assert.Equal(t, 1, conn.closeCalls)
}

func TestSubmitReleasesSessionOnCursorFailure(t *testing.T) {
	conn := &spyConn{api: &gluetest.FakeAPI{}, cursorErr: errors.New("provisioning failed")}
	h := newTestHelper(testModel(), conn)

	err := h.Submit(context.Background(), "print(1)")
	require.Error(t, err)
	assert.Empty(t, conn.api.RunCalls)
	assert.Equal(t, 1, conn.closeCalls)
}

func TestSubmitConnectFailure(t *testing.T) {
	h := NewJobHelper(testModel(), nil, WithConnector(func(context.Context) (SessionConn, error) {
		return nil, fmt.Errorf("no aws credentials")
	}))

	err := h.Submit(context.Background(), "print(1)")
	var runtimeErr *dbterrors.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, err.Error(), "no aws credentials")
}

type recorderSpy struct {
	runs []history.Run
}

func (r *recorderSpy) RecordRun(run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func TestSubmitRecordsHistory(t *testing.T) {
	conn := &spyConn{api: &gluetest.FakeAPI{}}
	rec := &recorderSpy{}
	h := newTestHelper(testModel("pandas"), conn, WithRecorder(rec))

	require.NoError(t, h.Submit(context.Background(), "print(1)"))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "orders_enriched", rec.runs[0].ModelAlias)
	assert.Equal(t, "success", rec.runs[0].Status)
	assert.Equal(t, "sess-1", rec.runs[0].SessionID)
	assert.Equal(t, "pandas", rec.runs[0].Packages)
}

func TestSubmitRecordsFailure(t *testing.T) {
	api := &gluetest.FakeAPI{
		GetStatementFunc: func(_ context.Context, _ string, id int32) (*glue.Statement, error) {
			return &glue.Statement{ID: id, State: glue.StateCancelled}, nil
		},
	}
	conn := &spyConn{api: api}
	rec := &recorderSpy{}
	h := newTestHelper(testModel(), conn, WithRecorder(rec))

	require.Error(t, h.Submit(context.Background(), "print(1)"))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "error", rec.runs[0].Status)
	assert.Contains(t, rec.runs[0].Error, "CANCELLED")
}
