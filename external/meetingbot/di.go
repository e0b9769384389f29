package meetingbot

import (
	"github.com/foxseedlab/studentize/internal/botsession"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/meetingbot"
	"github.com/samber/do/v2"
)

// RegisterDI provides the meeting bot router. The Discord manager is only resolved
// when DISCORD_TOKEN is configured.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (meetingbot.Dispatcher, error) {
		c := do.MustInvoke[*config.Config](i)
		var vendor, discord meetingbot.Dispatcher
		if c.MeetingBotVendorEnabled() {
			vendor = NewVendorClient(c.MeetingBotAPIURL, c.MeetingBotAPIKey, c.MeetingBotName)
		}
		if c.DiscordBotEnabled() {
			discord = do.MustInvoke[*botsession.Manager](i)
		}
		return meetingbot.NewRouter(vendor, discord), nil
	})
}
