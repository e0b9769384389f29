package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

func newRun() *mocks.WorkflowRun {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("wf-id")
	run.On("GetRunID").Return("run-id")
	return run
}

func TestStartAutoJoinTerminatesExisting(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "auto-join-sch-1" &&
				o.TaskQueue == "studentize" &&
				o.WorkflowIDConflictPolicy == enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING
		}),
		workflow.AutoJoinWorkflowName,
		workflow.AutoJoinInput{ScheduledSessionID: "sch-1", AccessToken: "user-token", LeadBuffer: time.Minute},
	).Return(newRun(), nil).Once()

	s := NewStarter(tc, "studentize", time.Minute, nil)
	require.NoError(t, s.StartAutoJoin(context.Background(), "sch-1", "user-token"))
	tc.AssertExpectations(t)
}

func TestStartSummaryReusesRunningWorkflow(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "summary-ses-1" && o.WorkflowIDConflictPolicy == enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING
		}),
		workflow.SummaryWorkflowName,
		workflow.SummaryInput{SessionID: "ses-1"},
	).Return(newRun(), nil).Once()

	s := NewStarter(tc, "studentize", time.Minute, nil)
	require.NoError(t, s.StartSummary(context.Background(), "ses-1"))
	tc.AssertExpectations(t)
}

func TestStartSummaryWrapsError(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("unavailable")).Once()

	s := NewStarter(tc, "studentize", time.Minute, nil)
	err := s.StartSummary(context.Background(), "ses-1")
	require.ErrorContains(t, err, "start summary workflow")
}
