package signaling

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/foxseedlab/studentize/internal/advisor"
)

type mockUpstream struct {
	offer   string
	session SessionConfig
	answer  *Answer
	err     error
}

func (m *mockUpstream) CreateCall(_ context.Context, offerSDP string, session SessionConfig) (*Answer, error) {
	m.offer = offerSDP
	m.session = session
	return m.answer, m.err
}

func newTestService(t *testing.T, up *mockUpstream) *Service {
	t.Helper()
	catalog, err := advisor.NewCatalog(advisor.Persona{Slug: "maya", Name: "Maya", Voice: "verse", Instructions: "Be Maya."})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewService(up, catalog, "gpt-realtime", "alloy", nil)
}

func TestExchangeUsesPersona(t *testing.T) {
	up := &mockUpstream{answer: &Answer{StatusCode: http.StatusCreated, Body: []byte("v=0 answer")}}
	s := newTestService(t, up)

	answer, err := s.Exchange(context.Background(), "maya", []byte("v=0\r\noffer\r\n\r\n"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if answer.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", answer.StatusCode)
	}
	if up.offer != "v=0\r\noffer\r\n" {
		t.Fatalf("unexpected offer: %q", up.offer)
	}
	if up.session.Model != "gpt-realtime" || up.session.Audio.Output.Voice != "verse" || up.session.Instructions != "Be Maya." {
		t.Fatalf("unexpected session: %+v", up.session)
	}
	if up.session.Audio.Input.Transcription == nil {
		t.Fatalf("input transcription must be enabled")
	}
}

func TestExchangeDefaultPersonaFallsBackToConfiguredVoice(t *testing.T) {
	up := &mockUpstream{answer: &Answer{StatusCode: http.StatusCreated}}
	s := newTestService(t, up)
	if _, err := s.Exchange(context.Background(), "", []byte("v=0")); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if up.session.Audio.Output.Voice != "alloy" || up.session.Instructions == "" {
		t.Fatalf("unexpected default session: %+v", up.session)
	}
}

func TestExchangePassesThroughUpstreamFailure(t *testing.T) {
	up := &mockUpstream{answer: &Answer{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":"bad key"}`)}}
	s := newTestService(t, up)
	answer, err := s.Exchange(context.Background(), "maya", []byte("v=0"))
	if err != nil {
		t.Fatalf("non-2xx upstream must not be an error: %v", err)
	}
	if answer.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", answer.StatusCode)
	}
}

func TestExchangeErrors(t *testing.T) {
	s := newTestService(t, &mockUpstream{err: errors.New("dial tcp: refused")})
	if _, err := s.Exchange(context.Background(), "maya", []byte("  ")); !errors.Is(err, ErrEmptyOffer) {
		t.Fatalf("expected ErrEmptyOffer, got %v", err)
	}
	if _, err := s.Exchange(context.Background(), "ghost", []byte("v=0")); !errors.Is(err, advisor.ErrUnknownAdvisor) {
		t.Fatalf("expected ErrUnknownAdvisor, got %v", err)
	}
	if _, err := s.Exchange(context.Background(), "maya", []byte("v=0")); err == nil {
		t.Fatalf("expected transport error")
	}
}
