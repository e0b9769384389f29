package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/studentize/external/audio"
	authimpl "github.com/foxseedlab/studentize/external/auth"
	configloader "github.com/foxseedlab/studentize/external/config"
	"github.com/foxseedlab/studentize/external/discord"
	meetingbotimpl "github.com/foxseedlab/studentize/external/meetingbot"
	"github.com/foxseedlab/studentize/external/realtime"
	"github.com/foxseedlab/studentize/external/redis"
	repositoryimpl "github.com/foxseedlab/studentize/external/repository"
	summarizerimpl "github.com/foxseedlab/studentize/external/summarizer"
	"github.com/foxseedlab/studentize/external/temporal"
	transcriberimpl "github.com/foxseedlab/studentize/external/transcriber"
	webhookimpl "github.com/foxseedlab/studentize/external/webhook"
	"github.com/foxseedlab/studentize/internal/advisor"
	"github.com/foxseedlab/studentize/internal/api"
	"github.com/foxseedlab/studentize/internal/botsession"
	"github.com/foxseedlab/studentize/internal/config"
	discordpkg "github.com/foxseedlab/studentize/internal/discord"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/foxseedlab/studentize/internal/signaling"
	"github.com/samber/do/v2"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var manager *botsession.Manager
	if cfg.DiscordBotEnabled() {
		slog.Info("startup: launching discord bot")
		var closeBot func()
		manager, closeBot = startDiscordBot(injector)
		defer closeBot()
	} else {
		slog.Info("startup: DISCORD_TOKEN not set; discord bot disabled")
	}

	server, err := do.Invoke[*api.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	if err := server.Run(ctx); err != nil {
		slog.Error("http server failed", "error", err)
	}

	slog.Info("shutting down")
	if manager != nil {
		manager.Shutdown()
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	redis.RegisterDI(injector)
	authimpl.RegisterDI(injector)
	summarizerimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	temporal.RegisterDI(injector)
	if cfg.DiscordBotEnabled() {
		audioimpl.RegisterDI(injector)
		discord.RegisterDI(injector)
		transcriberimpl.RegisterDI(injector)
		botsession.RegisterDI(injector)
	}
	meetingbotimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	advisor.RegisterDI(injector)
	realtime.RegisterDI(injector)
	signaling.RegisterDI(injector)
	api.RegisterDI(injector)

	return injector
}

// startDiscordBot connects the gateway and registers the voice state handler.
// The returned func closes the gateway session.
func startDiscordBot(injector do.Injector) (*botsession.Manager, func()) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*botsession.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve bot session manager", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	manager.SetBotUserID(botUserID)
	dc.RegisterVoiceStateUpdateHandler(manager.HandleVoiceStateUpdate)
	slog.Info("discord handlers registered", "bot_user_id", botUserID)

	return manager, func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}
}
