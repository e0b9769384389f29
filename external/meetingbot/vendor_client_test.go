package meetingbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/studentize/internal/meetingbot"
)

func TestVendorClient_SendBot(t *testing.T) {
	var got createBotRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bot" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token vendor-key" {
			t.Fatalf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"bot-42"}`))
	}))
	defer server.Close()

	c := NewVendorClient(server.URL+"/", "vendor-key", "Studentize Notetaker")
	d, err := c.SendBot(context.Background(), meetingbot.BotRequest{SessionID: "s1", MeetingLink: "https://zoom.us/j/1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.BotID != "bot-42" || d.Provider != meetingbot.ProviderVendor {
		t.Fatalf("unexpected dispatch: %+v", d)
	}
	if got.MeetingURL != "https://zoom.us/j/1" || got.BotName != "Studentize Notetaker" || got.Metadata["session_id"] != "s1" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestVendorClient_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid meeting url"}`))
	}))
	defer server.Close()

	c := NewVendorClient(server.URL, "k", "bot")
	_, err := c.SendBot(context.Background(), meetingbot.BotRequest{MeetingLink: "https://zoom.us/j/1"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected StatusError 422, got %v", err)
	}
}
