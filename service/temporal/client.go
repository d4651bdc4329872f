package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// Client starts and awaits snapshot workflows.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartSnapshot starts a SnapshotWorkflow and returns its workflow and run IDs.
func (c *Client) StartSnapshot(ctx context.Context, input SnapshotWorkflowInput) (string, string, error) {
	if len(input.AssetIDs) == 0 {
		return "", "", fmt.Errorf("at least one asset ID is required")
	}

	workflowID := fmt.Sprintf("snapshot-%s", uuid.NewString())
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"asset_ids":  input.AssetIDs,
			"created_by": "rafflebandz",
		},
	}, SnapshotWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start snapshot workflow", "workflow_id", workflowID, "error", err)
		return "", "", fmt.Errorf("failed to start workflow %q: %w", workflowID, err)
	}

	c.logger.Info("started snapshot workflow",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"assets", len(input.AssetIDs),
	)
	return run.GetID(), run.GetRunID(), nil
}

// WaitSnapshot blocks until the workflow finishes and returns its result.
func (c *Client) WaitSnapshot(ctx context.Context, workflowID, runID string) (*SnapshotWorkflowResult, error) {
	var result SnapshotWorkflowResult
	if err := c.client.GetWorkflow(ctx, workflowID, runID).Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("snapshot workflow %q failed: %w", workflowID, err)
	}
	return &result, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
