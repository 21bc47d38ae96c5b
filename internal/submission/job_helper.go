package submission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/akmalsoliev/dbt-glue/internal/config"
	"github.com/akmalsoliev/dbt-glue/internal/dbterrors"
	"github.com/akmalsoliev/dbt-glue/internal/glue"
	"github.com/akmalsoliev/dbt-glue/internal/history"
	"github.com/akmalsoliev/dbt-glue/internal/model"
	"github.com/akmalsoliev/dbt-glue/internal/packages"
	"github.com/akmalsoliev/dbt-glue/internal/pyast"
	"github.com/akmalsoliev/dbt-glue/internal/statement"
)

// SessionConn is the session lifecycle surface Submit needs. Satisfied by
// *glue.Connection; tests substitute spies.
type SessionConn interface {
	Cursor(ctx context.Context) (string, error)
	Client() glue.SessionAPI
	Close(ctx context.Context) error
}

// Recorder receives submission outcomes for the local run history.
type Recorder interface {
	RecordRun(run history.Run) error
}

// JobHelper submits one compiled Python model to a Glue interactive session.
// It is the adapter-facing contract: construct with the parsed model and
// credentials, call Submit once per model execution.
type JobHelper struct {
	model *model.ParsedModel
	creds *config.Credentials

	pollInterval time.Duration
	logger       *slog.Logger
	recorder     Recorder

	// connect opens the session connection; replaced in tests.
	connect func(ctx context.Context) (SessionConn, error)
}

// Option tweaks a JobHelper.
type Option func(*JobHelper)

// WithPollInterval overrides the statement poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(h *JobHelper) { h.pollInterval = d }
}

// WithRecorder attaches a run-history recorder.
func WithRecorder(r Recorder) Option {
	return func(h *JobHelper) { h.recorder = r }
}

// WithConnector replaces how the session connection is opened.
func WithConnector(connect func(ctx context.Context) (SessionConn, error)) Option {
	return func(h *JobHelper) { h.connect = connect }
}

// NewJobHelper builds a helper for one parsed model.
func NewJobHelper(parsed *model.ParsedModel, creds *config.Credentials, opts ...Option) *JobHelper {
	parsed.ApplyDefaults()
	h := &JobHelper{
		model:        parsed,
		creds:        creds,
		pollInterval: statement.DefaultPollInterval,
		logger:       slog.Default(),
	}
	h.connect = func(ctx context.Context) (SessionConn, error) {
		client, err := glue.NewClient(ctx, creds)
		if err != nil {
			return nil, err
		}
		return glue.NewConnection(client, creds), nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit runs the compiled model code in a Glue session: install statement
// first when any packages are configured, then the model code. The session is
// released on every exit path, and any failure surfaces as a single
// *dbterrors.RuntimeError.
func (h *JobHelper) Submit(ctx context.Context, compiledCode string) error {
	start := time.Now()

	conn, err := h.connect(ctx)
	if err != nil {
		return dbterrors.Wrap("python model execution failed", err)
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			h.logger.Warn("failed to release glue session", "error", cerr)
		}
	}()

	sessionID, pkgs, err := h.execute(ctx, conn, compiledCode)
	h.record(sessionID, pkgs, time.Since(start), err)
	if err != nil {
		return dbterrors.Wrap("python model execution failed", err)
	}
	return nil
}

// execute does the actual work inside an open connection.
func (h *JobHelper) execute(ctx context.Context, conn SessionConn, compiledCode string) (string, []string, error) {
	sessionID, err := conn.Cursor(ctx)
	if err != nil {
		return "", nil, err
	}
	h.logger.Info("using glue session", "session_id", sessionID, "model", h.model.Alias, "schema", h.model.Schema)

	// Packages may be declared in the parsed model config or inline via
	// dbt.config(packages=[...]) in the compiled code.
	pkgs := packages.NewSet(h.model.Config.Packages...)
	pkgs.Union(pyast.ExtractPackages(compiledCode))

	runner := statement.NewRunner(conn.Client(), statement.Config{
		Timeout:      time.Duration(h.model.Config.Timeout) * time.Second,
		PollInterval: h.pollInterval,
	})

	names := pkgs.Sorted()
	if len(names) > 0 {
		h.logger.Info("installing model packages", "session_id", sessionID, "packages", names)
		// An install failure aborts the run; the model code must not execute
		// without its packages.
		if _, err := runner.Run(ctx, sessionID, packages.InstallStatement(names), "install"); err != nil {
			return sessionID, names, err
		}
	}

	if _, err := runner.Run(ctx, sessionID, compiledCode, "model"); err != nil {
		return sessionID, names, err
	}
	return sessionID, names, nil
}

// record writes the outcome to the run history, if one is attached.
func (h *JobHelper) record(sessionID string, pkgs []string, elapsed time.Duration, runErr error) {
	if h.recorder == nil {
		return
	}
	run := history.Run{
		ModelAlias: h.model.Alias,
		Schema:     h.model.Schema,
		SessionID:  sessionID,
		Packages:   strings.Join(pkgs, ", "),
		Status:     "success",
		Duration:   elapsed,
	}
	if runErr != nil {
		run.Status = "error"
		run.Error = runErr.Error()
	}
	if err := h.recorder.RecordRun(run); err != nil {
		h.logger.Warn("failed to record run history", "error", err)
	}
}
