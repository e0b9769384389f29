package temporal

import (
	"github.com/foxseedlab/studentize/internal/workflow"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"
)

func NewWorker(c client.Client, taskQueue string, activities *workflow.Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(workflow.AutoJoinWorkflow, sdkworkflow.RegisterOptions{Name: workflow.AutoJoinWorkflowName})
	w.RegisterWorkflowWithOptions(workflow.SummaryWorkflow, sdkworkflow.RegisterOptions{Name: workflow.SummaryWorkflowName})
	w.RegisterActivity(activities)
	return w
}
