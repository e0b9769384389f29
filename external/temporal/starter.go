package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/workflow"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Starter enqueues Studentize workflows through a Temporal client.
type Starter struct {
	client    client.Client
	taskQueue string
	lead      time.Duration
	metrics   *metrics.Metrics
}

func NewStarter(c client.Client, taskQueue string, lead time.Duration, m *metrics.Metrics) *Starter {
	return &Starter{client: c, taskQueue: taskQueue, lead: lead, metrics: m}
}

// StartAutoJoin replaces any auto-join already waiting for the same scheduled
// session, so a reschedule takes the new scheduledAt.
func (s *Starter) StartAutoJoin(ctx context.Context, scheduledSessionID, accessToken string) error {
	opts := client.StartWorkflowOptions{
		ID:                       workflow.AutoJoinWorkflowID(scheduledSessionID),
		TaskQueue:                s.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflow.AutoJoinWorkflowName, workflow.AutoJoinInput{
		ScheduledSessionID: scheduledSessionID,
		AccessToken:        accessToken,
		LeadBuffer:         s.lead,
	})
	s.metrics.RecordWorkflowStart("auto_join", err)
	if err != nil {
		return fmt.Errorf("start auto-join workflow: %w", err)
	}
	slog.Info("auto-join workflow started", "scheduled_session_id", scheduledSessionID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}

// StartSummary attaches to a summary already running for the session instead of
// starting a second one.
func (s *Starter) StartSummary(ctx context.Context, sessionID string) error {
	opts := client.StartWorkflowOptions{
		ID:                       workflow.SummaryWorkflowID(sessionID),
		TaskQueue:                s.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflow.SummaryWorkflowName, workflow.SummaryInput{SessionID: sessionID})
	s.metrics.RecordWorkflowStart("summary", err)
	if err != nil {
		return fmt.Errorf("start summary workflow: %w", err)
	}
	slog.Info("summary workflow started", "session_id", sessionID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
