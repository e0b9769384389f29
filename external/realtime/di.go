package realtime

import (
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/signaling"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (signaling.Upstream, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(c.RealtimeBaseURL, c.OpenAIAPIKey), nil
	})
}
