package workflow

import (
	"context"
	"time"

	"go.temporal.io/sdk/workflow"
)

const (
	AutoJoinWorkflowName = "AutoJoinWorkflow"
	SummaryWorkflowName  = "SummaryWorkflow"

	// DefaultLeadBuffer is how long before scheduledAt the bot is dispatched.
	DefaultLeadBuffer = 60 * time.Second
)

// Starter enqueues workflows on the engine.
type Starter interface {
	StartAutoJoin(ctx context.Context, scheduledSessionID, accessToken string) error
	StartSummary(ctx context.Context, sessionID string) error
}

type AutoJoinInput struct {
	ScheduledSessionID string
	// AccessToken is the caller's bearer token captured at enqueue time. It is
	// reused for every step and never refreshed.
	AccessToken string
	LeadBuffer  time.Duration
}

type SummaryInput struct {
	SessionID string
}

func AutoJoinWorkflowID(scheduledSessionID string) string {
	return "auto-join-" + scheduledSessionID
}

func SummaryWorkflowID(sessionID string) string {
	return "summary-" + sessionID
}

// activityOptions leaves RetryPolicy unset so the server default applies; the
// schedule-to-close timeout bounds the retries.
func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout:    2 * time.Minute,
		ScheduleToCloseTimeout: 30 * time.Minute,
	}
}

// AutoJoinWorkflow fetches the schedule, sleeps on a durable timer until
// scheduledAt minus the lead buffer, then dispatches the meeting bot.
func AutoJoinWorkflow(ctx workflow.Context, in AutoJoinInput) error {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	var a *Activities
	var schedule FetchScheduleResult
	err := workflow.ExecuteActivity(ctx, a.FetchSchedule, FetchScheduleInput{
		ScheduledSessionID: in.ScheduledSessionID,
		AccessToken:        in.AccessToken,
	}).Get(ctx, &schedule)
	if err != nil {
		return err
	}
	if !schedule.Found || schedule.ScheduledAt.IsZero() {
		logger.Info("scheduled session not found or unscheduled; nothing to join", "scheduled_session_id", in.ScheduledSessionID)
		return nil
	}
	if schedule.Ended {
		logger.Info("scheduled session already ended; skipping bot", "scheduled_session_id", in.ScheduledSessionID)
		return nil
	}

	lead := in.LeadBuffer
	if lead <= 0 {
		lead = DefaultLeadBuffer
	}
	wakeAt := schedule.ScheduledAt.Add(-lead)
	if wait := wakeAt.Sub(workflow.Now(ctx)); wait > 0 {
		logger.Info("sleeping until bot dispatch", "scheduled_session_id", in.ScheduledSessionID, "wake_at", wakeAt, "wait", wait)
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	var dispatch DispatchBotResult
	err = workflow.ExecuteActivity(ctx, a.DispatchBot, DispatchBotInput{
		ScheduledSessionID: in.ScheduledSessionID,
		AccessToken:        in.AccessToken,
	}).Get(ctx, &dispatch)
	if err != nil {
		return err
	}
	logger.Info("bot dispatched", "scheduled_session_id", in.ScheduledSessionID, "bot_id", dispatch.BotID, "session_id", dispatch.SessionID)
	return nil
}

// SummaryWorkflow runs the summarize step with the worker's own credentials.
func SummaryWorkflow(ctx workflow.Context, in SummaryInput) error {
	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.Summarize, in).Get(ctx, nil)
}
