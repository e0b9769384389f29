package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/studentize/internal/webhook"
	"github.com/google/uuid"
)

const (
	webhookTimeout   = 10 * time.Second
	maxErrorBodySize = 512
)

type HTTPSender struct {
	webhookURL string
	secret     []byte
	client     *http.Client
	now        func() time.Time
}

func NewHTTPSender(webhookURL, secret string) *HTTPSender {
	s := &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
		now:        time.Now,
	}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

// Sign returns the signature header value for body sent at ts. Receivers
// recompute it over "<unix ts>.<body>".
func Sign(secret []byte, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return webhook.SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func (s *HTTPSender) SendSummaryReady(ctx context.Context, payload webhook.SummaryReadyPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	if payload.SchemaVersion == 0 {
		payload.SchemaVersion = webhook.SummaryWebhookSchemaVersion
	}
	if payload.Event == "" {
		payload.Event = webhook.EventSummaryReady
	}
	return s.post(ctx, payload.Event, payload)
}

func (s *HTTPSender) post(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	delivery := uuid.NewString()
	ts := s.now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderEvent, event)
	req.Header.Set(webhook.HeaderDelivery, delivery)
	req.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	if len(s.secret) > 0 {
		req.Header.Set(webhook.HeaderSignature, Sign(s.secret, ts, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s webhook: %w", event, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("webhook %s returned status %d: %s", delivery, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	slog.Debug("webhook delivered", "event", event, "delivery_id", delivery, "status", resp.StatusCode)
	return nil
}
