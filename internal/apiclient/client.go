package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// StatusError is returned for any non-2xx RPC response.
type StatusError struct {
	Procedure  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc %s failed: %d: %s", e.Procedure, e.StatusCode, e.Message)
}

// IsClientError reports whether err is a 4xx response. Retrying those cannot succeed.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client calls the session RPC API. The bearer token is supplied per call so the
// same client can act for a captured user token or for the worker's service token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type ScheduledSession struct {
	ID               string     `json:"id"`
	AdvisorUserID    string     `json:"advisorUserId"`
	StudentUserID    string     `json:"studentUserId"`
	ScheduledAt      *time.Time `json:"scheduledAt"`
	MeetingLink      string     `json:"meetingLink"`
	BotID            *string    `json:"botId,omitempty"`
	CreatedSessionID *string    `json:"createdSessionId,omitempty"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
}

type SendBotResult struct {
	BotID     string `json:"botId"`
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider,omitempty"`
}

func (c *Client) GetScheduledSession(ctx context.Context, token, id string) (*ScheduledSession, error) {
	var out ScheduledSession
	if err := c.call(ctx, token, "scheduledSessions.get", map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendBotToMeeting(ctx context.Context, token, scheduledSessionID string) (*SendBotResult, error) {
	var out SendBotResult
	if err := c.call(ctx, token, "sessions.sendBotToMeeting", map[string]string{"scheduledSessionId": scheduledSessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SummarizeTranscription(ctx context.Context, token, sessionID string) error {
	return c.call(ctx, token, "sessions.summarizeTranscription", map[string]string{"sessionId": sessionID}, nil)
}

func (c *Client) call(ctx context.Context, token, procedure string, in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s input: %w", procedure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+procedure, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", procedure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Procedure: procedure, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", procedure, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(body))
}
