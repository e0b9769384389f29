package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SignalingError struct {
	StatusCode int
	Body       string
}

func (e *SignalingError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("signaling failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("signaling failed with status %d: %s", e.StatusCode, e.Body)
}

// HTTPSignaler posts the local SDP offer to the backend session endpoint and
// returns the SDP answer it relays from the realtime API.
type HTTPSignaler struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSignaler(apiBaseURL, advisor string) *HTTPSignaler {
	endpoint := strings.TrimRight(apiBaseURL, "/") + "/api/session"
	if advisor != "" {
		endpoint += "/" + url.PathEscape(advisor)
	}
	return &HTTPSignaler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSignaler) Exchange(ctx context.Context, offerSDP, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("build signaling request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signaling request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read signaling response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SignalingError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}
