package session

import (
	"github.com/foxseedlab/studentize/internal/meetingbot"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/foxseedlab/studentize/internal/summarizer"
	"github.com/foxseedlab/studentize/internal/webhook"
	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		repo := do.MustInvoke[repository.Repository](i)
		bots := do.MustInvoke[meetingbot.Dispatcher](i)
		sum := do.MustInvoke[summarizer.Summarizer](i)
		wh := do.MustInvoke[webhook.Sender](i)
		starter := do.MustInvoke[workflow.Starter](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewService(repo, bots, sum, wh, starter, m), nil
	})
}
