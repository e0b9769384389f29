package meetingbot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	ProviderVendor  = "vendor"
	ProviderDiscord = "discord"
)

var (
	ErrUnsupportedMeetingLink = errors.New("unsupported meeting link")
	ErrNoProvider             = errors.New("no meeting bot provider configured for link")
	ErrChannelBusy            = errors.New("meeting already has a bot recording another session")
)

type BotRequest struct {
	ScheduledSessionID string
	SessionID          string
	MeetingLink        string
	Title              string
}

type Dispatch struct {
	BotID    string
	Provider string
}

type Dispatcher interface {
	SendBot(ctx context.Context, req BotRequest) (*Dispatch, error)
}

// ParseDiscordLink extracts ids from https://discord.com/channels/<guild>/<channel>.
func ParseDiscordLink(link string) (guildID, channelID string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme != "https" {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	if host != "discord.com" && host != "www.discord.com" && host != "discordapp.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "channels" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Router sends Discord voice channel links to the in-house bot and everything else to the vendor.
// Either dispatcher may be nil when its provider is disabled.
type Router struct {
	vendor  Dispatcher
	discord Dispatcher
}

func NewRouter(vendor, discord Dispatcher) *Router {
	return &Router{vendor: vendor, discord: discord}
}

func (r *Router) SendBot(ctx context.Context, req BotRequest) (*Dispatch, error) {
	link := strings.TrimSpace(req.MeetingLink)
	if link == "" {
		return nil, ErrUnsupportedMeetingLink
	}
	if _, _, ok := ParseDiscordLink(link); ok {
		if r.discord == nil {
			return nil, fmt.Errorf("%w: discord", ErrNoProvider)
		}
		return r.discord.SendBot(ctx, req)
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMeetingLink, link)
	}
	if r.vendor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, u.Host)
	}
	return r.vendor.SendBot(ctx, req)
}
