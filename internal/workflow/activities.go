package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/foxseedlab/studentize/internal/apiclient"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// RPC is the subset of the session API the activities call.
type RPC interface {
	GetScheduledSession(ctx context.Context, token, id string) (*apiclient.ScheduledSession, error)
	SendBotToMeeting(ctx context.Context, token, scheduledSessionID string) (*apiclient.SendBotResult, error)
	SummarizeTranscription(ctx context.Context, token, sessionID string) error
}

type Activities struct {
	rpc          RPC
	serviceToken string
}

func NewActivities(rpc RPC, serviceToken string) *Activities {
	return &Activities{rpc: rpc, serviceToken: serviceToken}
}

type FetchScheduleInput struct {
	ScheduledSessionID string
	AccessToken        string
}

type FetchScheduleResult struct {
	Found       bool
	ScheduledAt time.Time
	Ended       bool
}

type DispatchBotInput struct {
	ScheduledSessionID string
	AccessToken        string
}

type DispatchBotResult struct {
	BotID     string
	SessionID string
}

func (a *Activities) FetchSchedule(ctx context.Context, in FetchScheduleInput) (*FetchScheduleResult, error) {
	row, err := a.rpc.GetScheduledSession(ctx, in.AccessToken, in.ScheduledSessionID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			activity.GetLogger(ctx).Info("scheduled session not found", "scheduled_session_id", in.ScheduledSessionID)
			return &FetchScheduleResult{}, nil
		}
		return nil, classify(err)
	}
	result := &FetchScheduleResult{Found: true, Ended: row.EndedAt != nil}
	if row.ScheduledAt != nil {
		result.ScheduledAt = row.ScheduledAt.UTC()
	}
	return result, nil
}

func (a *Activities) DispatchBot(ctx context.Context, in DispatchBotInput) (*DispatchBotResult, error) {
	res, err := a.rpc.SendBotToMeeting(ctx, in.AccessToken, in.ScheduledSessionID)
	if err != nil {
		return nil, classify(err)
	}
	return &DispatchBotResult{BotID: res.BotID, SessionID: res.SessionID}, nil
}

func (a *Activities) Summarize(ctx context.Context, in SummaryInput) error {
	err := a.rpc.SummarizeTranscription(ctx, a.serviceToken, in.SessionID)
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnprocessableEntity {
		activity.GetLogger(ctx).Info("session has no transcript; skipping summary", "session_id", in.SessionID)
		return nil
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify marks 4xx responses non-retryable; everything else is left to the
// retry policy.
func classify(err error) error {
	if !apiclient.IsClientError(err) {
		return err
	}
	var se *apiclient.StatusError
	errors.As(err, &se)
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("rpc %s rejected with %d", se.Procedure, se.StatusCode),
		fmt.Sprintf("RPCStatus%d", se.StatusCode),
		err,
	)
}
