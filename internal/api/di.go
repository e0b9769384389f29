package api

import (
	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/foxseedlab/studentize/internal/signaling"
	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		verifier := do.MustInvoke[auth.Verifier](i)
		sessions := do.MustInvoke[*session.Service](i)
		starter := do.MustInvoke[workflow.Starter](i)
		sig := do.MustInvoke[*signaling.Service](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewServer(cfg, verifier, sessions, starter, sig, m), nil
	})
}
