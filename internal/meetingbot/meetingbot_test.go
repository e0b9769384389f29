package meetingbot

import (
	"context"
	"errors"
	"testing"
)

type fakeDispatcher struct {
	provider string
	calls    []BotRequest
}

func (f *fakeDispatcher) SendBot(_ context.Context, req BotRequest) (*Dispatch, error) {
	f.calls = append(f.calls, req)
	return &Dispatch{BotID: f.provider + "-bot", Provider: f.provider}, nil
}

func TestParseDiscordLink(t *testing.T) {
	g, c, ok := ParseDiscordLink("https://discord.com/channels/123/456")
	if !ok || g != "123" || c != "456" {
		t.Fatalf("unexpected parse result: %q %q %v", g, c, ok)
	}
	for _, link := range []string{
		"https://discord.com/channels/123",
		"https://discord.com/channels/123/456/789",
		"http://discord.com/channels/123/456",
		"https://meet.google.com/abc-defg-hij",
		"not a url",
	} {
		if _, _, ok := ParseDiscordLink(link); ok {
			t.Fatalf("expected %q to be rejected", link)
		}
	}
}

func TestRouter_RoutesByLink(t *testing.T) {
	vendor := &fakeDispatcher{provider: ProviderVendor}
	discord := &fakeDispatcher{provider: ProviderDiscord}
	r := NewRouter(vendor, discord)

	d, err := r.SendBot(context.Background(), BotRequest{SessionID: "s1", MeetingLink: "https://discord.com/channels/1/2"})
	if err != nil || d.Provider != ProviderDiscord {
		t.Fatalf("expected discord dispatch, got %+v err=%v", d, err)
	}
	d, err = r.SendBot(context.Background(), BotRequest{SessionID: "s2", MeetingLink: "https://zoom.us/j/123"})
	if err != nil || d.Provider != ProviderVendor {
		t.Fatalf("expected vendor dispatch, got %+v err=%v", d, err)
	}
	if len(vendor.calls) != 1 || len(discord.calls) != 1 {
		t.Fatalf("unexpected call counts vendor=%d discord=%d", len(vendor.calls), len(discord.calls))
	}
}

func TestRouter_Errors(t *testing.T) {
	r := NewRouter(nil, nil)
	if _, err := r.SendBot(context.Background(), BotRequest{MeetingLink: ""}); !errors.Is(err, ErrUnsupportedMeetingLink) {
		t.Fatalf("expected ErrUnsupportedMeetingLink, got %v", err)
	}
	if _, err := r.SendBot(context.Background(), BotRequest{MeetingLink: "ftp://example.com/x"}); !errors.Is(err, ErrUnsupportedMeetingLink) {
		t.Fatalf("expected ErrUnsupportedMeetingLink, got %v", err)
	}
	if _, err := r.SendBot(context.Background(), BotRequest{MeetingLink: "https://zoom.us/j/1"}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if _, err := r.SendBot(context.Background(), BotRequest{MeetingLink: "https://discord.com/channels/1/2"}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}
