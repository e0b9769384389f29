package sweeper

import (
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Sweeper, error) {
		c := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return New(repo, c.ScheduleSweepCron, c.ScheduledSessionTTL(), m), nil
	})
}
