package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/studentize/internal/advisor"
	"github.com/foxseedlab/studentize/internal/metrics"
)

const (
	DataChannelLabel        = "oai-events"
	inputTranscriptionModel = "whisper-1"
)

var ErrEmptyOffer = errors.New("sdp offer is empty")

// SessionConfig is the realtime session sent alongside the SDP offer.
type SessionConfig struct {
	Type         string       `json:"type"`
	Model        string       `json:"model"`
	Instructions string       `json:"instructions,omitempty"`
	Audio        SessionAudio `json:"audio"`
}

type SessionAudio struct {
	Input  SessionAudioInput  `json:"input"`
	Output SessionAudioOutput `json:"output"`
}

type SessionAudioInput struct {
	Transcription *InputTranscription `json:"transcription,omitempty"`
}

type InputTranscription struct {
	Model string `json:"model"`
}

type SessionAudioOutput struct {
	Voice string `json:"voice,omitempty"`
}

// Answer is the upstream response, passed through to the caller unchanged.
type Answer struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Upstream creates a realtime call from an SDP offer.
type Upstream interface {
	CreateCall(ctx context.Context, offerSDP string, session SessionConfig) (*Answer, error)
}

type Service struct {
	upstream Upstream
	personas *advisor.Catalog
	model    string
	voice    string
	metrics  *metrics.Metrics
}

func NewService(upstream Upstream, personas *advisor.Catalog, model, voice string, m *metrics.Metrics) *Service {
	return &Service{upstream: upstream, personas: personas, model: model, voice: voice, metrics: m}
}

func (s *Service) SessionConfig(p advisor.Persona) SessionConfig {
	voice := p.Voice
	if voice == "" {
		voice = s.voice
	}
	return SessionConfig{
		Type:         "realtime",
		Model:        s.model,
		Instructions: p.Instructions,
		Audio: SessionAudio{
			Input:  SessionAudioInput{Transcription: &InputTranscription{Model: inputTranscriptionModel}},
			Output: SessionAudioOutput{Voice: voice},
		},
	}
}

// Exchange forwards an SDP offer for the given advisor (empty selects the default
// persona). A non-2xx upstream status is returned as an Answer, not an error.
func (s *Service) Exchange(ctx context.Context, advisorSlug string, offer []byte) (*Answer, error) {
	sdp := strings.TrimSpace(string(offer))
	if sdp == "" {
		return nil, ErrEmptyOffer
	}
	persona, err := s.personas.Get(advisorSlug)
	if err != nil {
		return nil, err
	}
	// SDP lines are CRLF terminated; trimming dropped the last one.
	answer, err := s.upstream.CreateCall(ctx, sdp+"\r\n", s.SessionConfig(persona))
	if err != nil {
		s.metrics.RecordSignaling(persona.Slug, 0)
		return nil, fmt.Errorf("create realtime call: %w", err)
	}
	s.metrics.RecordSignaling(persona.Slug, answer.StatusCode)
	if answer.StatusCode < 200 || answer.StatusCode >= 300 {
		slog.Warn("realtime upstream rejected offer", "advisor", persona.Slug, "status", answer.StatusCode)
	}
	return answer, nil
}
