package temporal

import (
	"fmt"
	"log/slog"

	"github.com/foxseedlab/studentize/internal/apiclient"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/samber/do/v2"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (client.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		tc, err := client.Dial(client.Options{
			HostPort:  c.TemporalHostPort,
			Namespace: c.TemporalNamespace,
			Logger:    log.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to temporal at %s: %w", c.TemporalHostPort, err)
		}
		return tc, nil
	})
	do.Provide(injector, func(i do.Injector) (workflow.Starter, error) {
		c := do.MustInvoke[*config.Config](i)
		tc := do.MustInvoke[client.Client](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewStarter(tc, c.TemporalTaskQueue, c.AutoJoinLead(), m), nil
	})
}

// RegisterWorkerDI provides the worker that hosts both workflows. Activities call
// back into the HTTP API at PUBLIC_API_BASE_URL.
func RegisterWorkerDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (worker.Worker, error) {
		c := do.MustInvoke[*config.Config](i)
		tc := do.MustInvoke[client.Client](i)
		activities := workflow.NewActivities(apiclient.New(c.PublicAPIBaseURL), c.InternalAPIToken)
		return NewWorker(tc, c.TemporalTaskQueue, activities), nil
	})
}
