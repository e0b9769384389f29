package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/studentize/internal/signaling"
)

const (
	callsPath      = "/realtime/calls"
	requestTimeout = 30 * time.Second
	maxAnswerBytes = 1 << 20
	fieldSDP       = "sdp"
	fieldSession   = "session"
	defaultSDPType = "application/sdp"
)

var ErrNotConfigured = errors.New("realtime api key is not configured")

// Client posts SDP offers to the hosted realtime API as multipart form data.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) CreateCall(ctx context.Context, offerSDP string, session signaling.SessionConfig) (*signaling.Answer, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal realtime session: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField(fieldSDP, offerSDP); err != nil {
		return nil, err
	}
	if err := writer.WriteField(fieldSession, string(sessionJSON)); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+callsPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return nil, fmt.Errorf("read realtime answer: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultSDPType
	}
	return &signaling.Answer{StatusCode: resp.StatusCode, ContentType: contentType, Body: answer}, nil
}
