package meetingbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/studentize/internal/meetingbot"
)

const vendorRequestTimeout = 30 * time.Second

type VendorClient struct {
	baseURL string
	apiKey  string
	botName string
	client  *http.Client
}

func NewVendorClient(baseURL, apiKey, botName string) *VendorClient {
	return &VendorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		botName: botName,
		client:  &http.Client{Timeout: vendorRequestTimeout},
	}
}

type createBotRequest struct {
	MeetingURL string            `json:"meeting_url"`
	BotName    string            `json:"bot_name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type createBotResponse struct {
	ID string `json:"id"`
}

// StatusError carries the vendor's non-2xx status so callers can tell client from server failures.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("meeting bot vendor returned status %d: %s", e.StatusCode, e.Body)
}

func (c *VendorClient) SendBot(ctx context.Context, req meetingbot.BotRequest) (*meetingbot.Dispatch, error) {
	b, err := json.Marshal(createBotRequest{
		MeetingURL: req.MeetingLink,
		BotName:    c.botName,
		Metadata:   map[string]string{"session_id": req.SessionID},
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var out createBotResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode vendor response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("vendor response has no bot id")
	}
	slog.Info("meeting bot dispatched via vendor", "session_id", req.SessionID, "bot_id", out.ID)
	return &meetingbot.Dispatch{BotID: out.ID, Provider: meetingbot.ProviderVendor}, nil
}
