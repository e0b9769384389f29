package advisor

import (
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Catalog, error) {
		c := do.MustInvoke[*config.Config](i)
		return Load(c.AdvisorPersonasPath)
	})
}
