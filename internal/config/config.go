package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	SummarizerProviderOpenAI = "openai"
	SummarizerProviderGemini = "gemini"
)

type Config struct {
	Env                 string
	HTTPAddr            string
	PublicAPIBaseURL    string
	CORSAllowedOrigins  []string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	AuthJWTSecret       string
	AuthJWTIssuer       string
	InternalAPIToken    string
	TemporalHostPort    string
	TemporalNamespace   string
	TemporalTaskQueue   string
	AutoJoinLeadSeconds int

	SummarizerProvider string
	OpenAIAPIKey       string
	OpenAISummaryModel string
	GeminiAPIKey       string
	GeminiSummaryModel string

	SummaryWebhookURL string
	// SummaryWebhookSecret signs webhook bodies with HMAC-SHA256 when set.
	SummaryWebhookSecret string

	RealtimeBaseURL     string
	RealtimeModel       string
	RealtimeVoice       string
	AdvisorPersonasPath string

	MeetingBotAPIURL        string
	MeetingBotAPIKey        string
	MeetingBotName          string
	MeetingBotWebhookSecret string

	DiscordToken               string
	MaxBotSessionMin           int
	DefaultTranscribeLanguage  string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	SpeechPhraseHints          []string

	ScheduleSweepCron           string
	ScheduledSessionTTLHours    int
	ScheduledSessionDurationMin int
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if _, err := url.ParseRequestURI(c.PublicAPIBaseURL); err != nil {
		return fmt.Errorf("PUBLIC_API_BASE_URL is invalid: %w", err)
	}
	if c.AutoJoinLeadSeconds < 0 {
		return fmt.Errorf("AUTO_JOIN_LEAD_SECONDS must not be negative, got %d", c.AutoJoinLeadSeconds)
	}
	switch c.SummarizerProvider {
	case SummarizerProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SUMMARIZER_PROVIDER=openai")
		}
	case SummarizerProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when SUMMARIZER_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("SUMMARIZER_PROVIDER must be openai or gemini, got %q", c.SummarizerProvider)
	}
	if c.DiscordBotEnabled() {
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when DISCORD_TOKEN is set")
		}
		if c.DefaultTranscribeLanguage == "" {
			return fmt.Errorf("DEFAULT_TRANSCRIBE_LANGUAGE is required when DISCORD_TOKEN is set")
		}
	}
	if c.MaxBotSessionMin <= 0 {
		return fmt.Errorf("MAX_BOT_SESSION_MIN must be positive, got %d", c.MaxBotSessionMin)
	}
	if c.ScheduledSessionTTLHours <= 0 {
		return fmt.Errorf("SCHEDULED_SESSION_TTL_HOURS must be positive, got %d", c.ScheduledSessionTTLHours)
	}
	if c.ScheduledSessionDurationMin <= 0 {
		return fmt.Errorf("SCHEDULED_SESSION_DURATION_MIN must be positive, got %d", c.ScheduledSessionDurationMin)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "PUBLIC_API_BASE_URL", value: c.PublicAPIBaseURL},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "AUTH_JWT_SECRET", value: c.AuthJWTSecret},
		{name: "INTERNAL_API_TOKEN", value: c.InternalAPIToken},
		{name: "TEMPORAL_HOST_PORT", value: c.TemporalHostPort},
		{name: "TEMPORAL_NAMESPACE", value: c.TemporalNamespace},
		{name: "TEMPORAL_TASK_QUEUE", value: c.TemporalTaskQueue},
		{name: "REALTIME_BASE_URL", value: c.RealtimeBaseURL},
		{name: "REALTIME_MODEL", value: c.RealtimeModel},
		{name: "SCHEDULE_SWEEP_CRON", value: c.ScheduleSweepCron},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DiscordBotEnabled() bool {
	return strings.TrimSpace(c.DiscordToken) != ""
}

func (c *Config) MeetingBotVendorEnabled() bool {
	return strings.TrimSpace(c.MeetingBotAPIURL) != ""
}

func (c *Config) AutoJoinLead() time.Duration {
	return time.Duration(c.AutoJoinLeadSeconds) * time.Second
}

func (c *Config) MaxBotSessionDuration() time.Duration {
	return time.Duration(c.MaxBotSessionMin) * time.Minute
}

func (c *Config) ScheduledSessionTTL() time.Duration {
	return time.Duration(c.ScheduledSessionTTLHours) * time.Hour
}

func (c *Config) ScheduledSessionDuration() time.Duration {
	return time.Duration(c.ScheduledSessionDurationMin) * time.Minute
}
