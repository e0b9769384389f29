package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/studentize/internal/signaling"
)

func TestCreateCallPostsMultipartOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realtime/calls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("sdp"); got != "v=0\r\n" {
			t.Errorf("unexpected sdp: %q", got)
		}
		var session signaling.SessionConfig
		if err := json.Unmarshal([]byte(r.FormValue("session")), &session); err != nil {
			t.Errorf("session is not json: %v", err)
		}
		if session.Model != "gpt-realtime" || session.Audio.Output.Voice != "alloy" {
			t.Errorf("unexpected session: %+v", session)
		}
		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "v=0 answer")
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "sk-test")
	answer, err := c.CreateCall(context.Background(), "v=0\r\n", signaling.SessionConfig{
		Type:  "realtime",
		Model: "gpt-realtime",
		Audio: signaling.SessionAudio{Output: signaling.SessionAudioOutput{Voice: "alloy"}},
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if answer.StatusCode != http.StatusCreated || string(answer.Body) != "v=0 answer" || answer.ContentType != "application/sdp" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestCreateCallPassesThroughErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	answer, err := NewClient(srv.URL, "sk-test").CreateCall(context.Background(), "v=0\r\n", signaling.SessionConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.StatusCode != http.StatusTooManyRequests || answer.ContentType != "application/json" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestCreateCallRequiresKey(t *testing.T) {
	_, err := NewClient("http://unused", "").CreateCall(context.Background(), "v=0", signaling.SessionConfig{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
