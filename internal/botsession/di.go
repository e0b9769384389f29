package botsession

import (
	"github.com/foxseedlab/studentize/internal/audio"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/discord"
	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/foxseedlab/studentize/internal/transcriber"
	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		newMixer := do.MustInvoke[audio.MixerFactory](i)
		starter := do.MustInvoke[workflow.Starter](i)
		return NewManager(cfg, repo, dc, stt, newMixer, starter), nil
	})
}
