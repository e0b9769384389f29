package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/studentize/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                 string   `env:"ENV" envDefault:"production"`
	HTTPAddr            string   `env:"HTTP_ADDR" envDefault:":8080"`
	PublicAPIBaseURL    string   `env:"PUBLIC_API_BASE_URL,required"`
	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	DatabaseURL         string   `env:"DATABASE_URL,required"`
	RedisAddr           string   `env:"REDIS_ADDR"`
	RedisPassword       string   `env:"REDIS_PASSWORD"`
	RedisDB             int      `env:"REDIS_DB" envDefault:"0"`
	AuthJWTSecret       string   `env:"AUTH_JWT_SECRET,required"`
	AuthJWTIssuer       string   `env:"AUTH_JWT_ISSUER"`
	InternalAPIToken    string   `env:"INTERNAL_API_TOKEN,required"`
	TemporalHostPort    string   `env:"TEMPORAL_HOST_PORT" envDefault:"localhost:7233"`
	TemporalNamespace   string   `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalTaskQueue   string   `env:"TEMPORAL_TASK_QUEUE" envDefault:"studentize-sessions"`
	AutoJoinLeadSeconds int      `env:"AUTO_JOIN_LEAD_SECONDS" envDefault:"60"`

	SummarizerProvider string `env:"SUMMARIZER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAISummaryModel string `env:"OPENAI_SUMMARY_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	GeminiSummaryModel string `env:"GEMINI_SUMMARY_MODEL" envDefault:"gemini-2.5-flash"`

	SummaryWebhookURL    string `env:"SUMMARY_WEBHOOK_URL"`
	SummaryWebhookSecret string `env:"SUMMARY_WEBHOOK_SECRET"`

	RealtimeBaseURL     string `env:"REALTIME_BASE_URL" envDefault:"https://api.openai.com/v1"`
	RealtimeModel       string `env:"REALTIME_MODEL" envDefault:"gpt-realtime"`
	RealtimeVoice       string `env:"REALTIME_VOICE" envDefault:"alloy"`
	AdvisorPersonasPath string `env:"ADVISOR_PERSONAS_PATH"`

	MeetingBotAPIURL        string `env:"MEETING_BOT_API_URL"`
	MeetingBotAPIKey        string `env:"MEETING_BOT_API_KEY"`
	MeetingBotName          string `env:"MEETING_BOT_NAME" envDefault:"Studentize Notetaker"`
	MeetingBotWebhookSecret string `env:"MEETING_BOT_WEBHOOK_SECRET"`

	DiscordToken               string   `env:"DISCORD_TOKEN"`
	MaxBotSessionMin           int      `env:"MAX_BOT_SESSION_MIN" envDefault:"120"`
	DefaultTranscribeLanguage  string   `env:"DEFAULT_TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	GoogleCloudProjectID       string   `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string   `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"us"`
	GoogleCloudSpeechModel     string   `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	SpeechPhraseHints          []string `env:"SPEECH_PHRASE_HINTS" envSeparator:","`

	ScheduleSweepCron           string `env:"SCHEDULE_SWEEP_CRON" envDefault:"@every 15m"`
	ScheduledSessionTTLHours    int    `env:"SCHEDULED_SESSION_TTL_HOURS" envDefault:"24"`
	ScheduledSessionDurationMin int    `env:"SCHEDULED_SESSION_DURATION_MIN" envDefault:"60"`
}

// Load reads .env (if present) without overriding the process environment,
// then parses and validates the configuration.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                         raw.Env,
		HTTPAddr:                    raw.HTTPAddr,
		PublicAPIBaseURL:            strings.TrimRight(raw.PublicAPIBaseURL, "/"),
		CORSAllowedOrigins:          trimAll(raw.CORSAllowedOrigins),
		DatabaseURL:                 raw.DatabaseURL,
		RedisAddr:                   raw.RedisAddr,
		RedisPassword:               raw.RedisPassword,
		RedisDB:                     raw.RedisDB,
		AuthJWTSecret:               raw.AuthJWTSecret,
		AuthJWTIssuer:               raw.AuthJWTIssuer,
		InternalAPIToken:            raw.InternalAPIToken,
		TemporalHostPort:            raw.TemporalHostPort,
		TemporalNamespace:           raw.TemporalNamespace,
		TemporalTaskQueue:           raw.TemporalTaskQueue,
		AutoJoinLeadSeconds:         raw.AutoJoinLeadSeconds,
		SummarizerProvider:          strings.ToLower(strings.TrimSpace(raw.SummarizerProvider)),
		OpenAIAPIKey:                raw.OpenAIAPIKey,
		OpenAISummaryModel:          raw.OpenAISummaryModel,
		GeminiAPIKey:                raw.GeminiAPIKey,
		GeminiSummaryModel:          raw.GeminiSummaryModel,
		SummaryWebhookURL:           raw.SummaryWebhookURL,
		SummaryWebhookSecret:        raw.SummaryWebhookSecret,
		RealtimeBaseURL:             strings.TrimRight(raw.RealtimeBaseURL, "/"),
		RealtimeModel:               raw.RealtimeModel,
		RealtimeVoice:               raw.RealtimeVoice,
		AdvisorPersonasPath:         raw.AdvisorPersonasPath,
		MeetingBotAPIURL:            strings.TrimRight(raw.MeetingBotAPIURL, "/"),
		MeetingBotAPIKey:            raw.MeetingBotAPIKey,
		MeetingBotName:              raw.MeetingBotName,
		MeetingBotWebhookSecret:     raw.MeetingBotWebhookSecret,
		DiscordToken:                raw.DiscordToken,
		MaxBotSessionMin:            raw.MaxBotSessionMin,
		DefaultTranscribeLanguage:   raw.DefaultTranscribeLanguage,
		GoogleCloudProjectID:        raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON:  raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:   raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:      raw.GoogleCloudSpeechModel,
		SpeechPhraseHints:           trimAll(raw.SpeechPhraseHints),
		ScheduleSweepCron:           raw.ScheduleSweepCron,
		ScheduledSessionTTLHours:    raw.ScheduledSessionTTLHours,
		ScheduledSessionDurationMin: raw.ScheduledSessionDurationMin,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
