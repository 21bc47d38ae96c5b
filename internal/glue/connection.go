package glue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akmalsoliev/dbt-glue/internal/config"
	"github.com/akmalsoliev/dbt-glue/internal/metrics"
)

const sessionPollInterval = 5 * time.Second

// Connection owns one interactive session for the duration of a model run.
// Cursor lazily provisions (or attaches to) the session; Close releases it.
// Sessions created here are deleted on Close; a session pinned through the
// credentials is left running because the caller owns it.
type Connection struct {
	api   SessionAPI
	creds *config.Credentials

	sessionID string
	owned     bool
	closed    bool

	logger *slog.Logger

	// injected in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnection wraps a Glue API and credentials into a session holder.
func NewConnection(api SessionAPI, creds *config.Credentials) *Connection {
	return &Connection{
		api:    api,
		creds:  creds,
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
}

// Cursor returns the id of a READY session, provisioning one on first use.
func (c *Connection) Cursor(ctx context.Context) (string, error) {
	if c.closed {
		return "", fmt.Errorf("glue connection is closed")
	}
	if c.sessionID != "" {
		return c.sessionID, nil
	}

	id := c.creds.SessionID
	if id == "" {
		id = "dbt-glue-" + uuid.NewString()
		c.logger.Info("provisioning glue session", "session_id", id, "glue_version", c.creds.GlueVersion, "workers", c.creds.NumberOfWorkers)
		created, err := c.api.CreateSession(ctx, CreateSessionRequest{
			ID:                 id,
			RoleArn:            c.creds.RoleArn,
			GlueVersion:        c.creds.GlueVersion,
			WorkerType:         c.creds.WorkerType,
			NumberOfWorkers:    c.creds.NumberOfWorkers,
			IdleTimeoutMinutes: c.creds.IdleTimeoutMinutes,
		})
		if err != nil {
			return "", err
		}
		id = created
		c.owned = true
	} else {
		c.logger.Info("reusing glue session", "session_id", id)
	}

	if err := c.waitReady(ctx, id); err != nil {
		if c.owned {
			// Best effort: do not leak a session we failed to bring up.
			if derr := c.api.DeleteSession(context.WithoutCancel(ctx), id); derr != nil {
				c.logger.Warn("failed to delete unready session", "session_id", id, "error", derr)
			}
		}
		return "", err
	}

	c.sessionID = id
	metrics.Default().SessionsOpen.Inc()
	return id, nil
}

// waitReady polls the session until READY or the provisioning timeout lapses.
func (c *Connection) waitReady(ctx context.Context, sessionID string) error {
	timeout := time.Duration(c.creds.SessionProvisioningTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	start := time.Now()
	for {
		state, err := c.api.GetSessionState(ctx, sessionID)
		if err != nil {
			return err
		}
		switch state {
		case SessionReady:
			return nil
		case SessionFailed, SessionStopping, SessionStopped, SessionTimeout:
			return fmt.Errorf("glue session %s entered state %s before becoming ready", sessionID, state)
		}
		if time.Since(start) >= timeout {
			return fmt.Errorf("glue session %s was not ready after %s", sessionID, timeout)
		}
		if err := c.sleep(ctx, sessionPollInterval); err != nil {
			return err
		}
	}
}

// Client exposes the underlying API for statement submission in this session.
func (c *Connection) Client() SessionAPI {
	return c.api
}

// SessionID returns the current session id, or "" before Cursor.
func (c *Connection) SessionID() string {
	return c.sessionID
}

// Close releases the session. It is safe to call more than once; only the
// first call does work.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.sessionID == "" {
		return nil
	}
	metrics.Default().SessionsOpen.Dec()
	if !c.owned {
		c.logger.Debug("leaving pinned glue session running", "session_id", c.sessionID)
		return nil
	}
	c.logger.Info("deleting glue session", "session_id", c.sessionID)
	return c.api.DeleteSession(ctx, c.sessionID)
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
