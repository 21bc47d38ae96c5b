package glue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/akmalsoliev/dbt-glue/internal/config"
)

// sdkAPI is the slice of the generated AWS SDK client we depend on.
type sdkAPI interface {
	RunStatement(ctx context.Context, params *awsglue.RunStatementInput, optFns ...func(*awsglue.Options)) (*awsglue.RunStatementOutput, error)
	GetStatement(ctx context.Context, params *awsglue.GetStatementInput, optFns ...func(*awsglue.Options)) (*awsglue.GetStatementOutput, error)
	CreateSession(ctx context.Context, params *awsglue.CreateSessionInput, optFns ...func(*awsglue.Options)) (*awsglue.CreateSessionOutput, error)
	GetSession(ctx context.Context, params *awsglue.GetSessionInput, optFns ...func(*awsglue.Options)) (*awsglue.GetSessionOutput, error)
	DeleteSession(ctx context.Context, params *awsglue.DeleteSessionInput, optFns ...func(*awsglue.Options)) (*awsglue.DeleteSessionOutput, error)
}

// Client adapts the AWS SDK Glue client to the SessionAPI surface the rest of
// the adapter uses. All SDK pointer plumbing stays inside this file.
type Client struct {
	api sdkAPI
}

var _ SessionAPI = (*Client)(nil)

// NewClient resolves AWS configuration through the default chain (env,
// shared config, instance metadata) with region/profile overrides from the
// credentials and returns a ready Client.
func NewClient(ctx context.Context, creds *config.Credentials) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}
	if creds.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(creds.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{api: awsglue.NewFromConfig(cfg)}, nil
}

// NewClientFromAPI wraps an existing SDK client (or a test double).
func NewClientFromAPI(api sdkAPI) *Client {
	return &Client{api: api}
}

// RunStatement submits one code fragment to the session and returns the
// statement id Glue assigned. There is no retry here; submission failures
// propagate to the caller.
func (c *Client) RunStatement(ctx context.Context, sessionID, code string) (int32, error) {
	out, err := c.api.RunStatement(ctx, &awsglue.RunStatementInput{
		SessionId: aws.String(sessionID),
		Code:      aws.String(code),
	})
	if err != nil {
		return 0, fmt.Errorf("run statement in session %s: %w", sessionID, err)
	}
	return out.Id, nil
}

// GetStatement fetches the current state of a previously submitted statement.
func (c *Client) GetStatement(ctx context.Context, sessionID string, statementID int32) (*Statement, error) {
	out, err := c.api.GetStatement(ctx, &awsglue.GetStatementInput{
		SessionId: aws.String(sessionID),
		Id:        statementID,
	})
	if err != nil {
		return nil, fmt.Errorf("get statement %d in session %s: %w", statementID, sessionID, err)
	}
	if out.Statement == nil {
		return nil, fmt.Errorf("glue returned no statement for id %d", statementID)
	}

	st := &Statement{
		ID:    out.Statement.Id,
		State: StatementState(out.Statement.State),
	}
	if o := out.Statement.Output; o != nil {
		st.Output = &Output{
			Status:     string(o.Status),
			ErrorName:  aws.ToString(o.ErrorName),
			ErrorValue: aws.ToString(o.ErrorValue),
			Traceback:  o.Traceback,
		}
		if o.Data != nil {
			st.Output.Data = aws.ToString(o.Data.TextPlain)
		}
	}
	return st, nil
}

// CreateSession provisions a new interactive session and returns its id.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (string, error) {
	in := &awsglue.CreateSessionInput{
		Id:   aws.String(req.ID),
		Role: aws.String(req.RoleArn),
		Command: &types.SessionCommand{
			Name:          aws.String("glueetl"),
			PythonVersion: aws.String("3"),
		},
		DefaultArguments: req.DefaultArguments,
	}
	if req.GlueVersion != "" {
		in.GlueVersion = aws.String(req.GlueVersion)
	}
	if req.WorkerType != "" {
		in.WorkerType = types.WorkerType(req.WorkerType)
	}
	if req.NumberOfWorkers > 0 {
		in.NumberOfWorkers = aws.Int32(req.NumberOfWorkers)
	}
	if req.IdleTimeoutMinutes > 0 {
		in.IdleTimeout = aws.Int32(req.IdleTimeoutMinutes)
	}

	out, err := c.api.CreateSession(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create glue session %s: %w", req.ID, err)
	}
	if out.Session != nil && out.Session.Id != nil {
		return aws.ToString(out.Session.Id), nil
	}
	return req.ID, nil
}

// GetSessionState fetches the lifecycle state of a session.
func (c *Client) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	out, err := c.api.GetSession(ctx, &awsglue.GetSessionInput{Id: aws.String(sessionID)})
	if err != nil {
		return "", fmt.Errorf("get glue session %s: %w", sessionID, err)
	}
	if out.Session == nil {
		return "", fmt.Errorf("glue returned no session for id %s", sessionID)
	}
	return SessionState(out.Session.Status), nil
}

// DeleteSession releases a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := c.api.DeleteSession(ctx, &awsglue.DeleteSessionInput{Id: aws.String(sessionID)}); err != nil {
		return fmt.Errorf("delete glue session %s: %w", sessionID, err)
	}
	return nil
}
