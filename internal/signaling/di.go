package signaling

import (
	"github.com/foxseedlab/studentize/internal/advisor"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		c := do.MustInvoke[*config.Config](i)
		upstream := do.MustInvoke[Upstream](i)
		personas := do.MustInvoke[*advisor.Catalog](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewService(upstream, personas, c.RealtimeModel, c.RealtimeVoice, m), nil
	})
}
