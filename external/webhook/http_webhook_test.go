package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/studentize/internal/webhook"
)

func TestSendSummaryReady_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("", "")
	if err := sender.SendSummaryReady(context.Background(), webhook.SummaryReadyPayload{SessionID: "s1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendSummaryReady_SignsBody(t *testing.T) {
	fixed := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	var (
		got     webhook.SummaryReadyPayload
		raw     []byte
		headers http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		headers = r.Header.Clone()
		raw, _ = io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, "s3cret")
	sender.now = func() time.Time { return fixed }
	err := sender.SendSummaryReady(context.Background(), webhook.SummaryReadyPayload{
		SessionID:    "session-1",
		Title:        "Essay review",
		SegmentCount: 3,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.SessionID != "session-1" || got.SegmentCount != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.SchemaVersion != webhook.SummaryWebhookSchemaVersion || got.Event != webhook.EventSummaryReady {
		t.Fatalf("defaults not applied: version=%d event=%q", got.SchemaVersion, got.Event)
	}
	if ct := headers.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if headers.Get(webhook.HeaderEvent) != webhook.EventSummaryReady || headers.Get(webhook.HeaderDelivery) == "" {
		t.Fatalf("missing event headers: %v", headers)
	}
	if headers.Get(webhook.HeaderTimestamp) != "1777716000" {
		t.Fatalf("timestamp = %q", headers.Get(webhook.HeaderTimestamp))
	}
	if want := Sign([]byte("s3cret"), fixed, raw); headers.Get(webhook.HeaderSignature) != want {
		t.Fatalf("signature = %q, want %q", headers.Get(webhook.HeaderSignature), want)
	}
}

func TestSendSummaryReady_UnsignedWithoutSecret(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(webhook.HeaderSignature)
	}))
	defer server.Close()

	if err := NewHTTPSender(server.URL, "").SendSummaryReady(context.Background(), webhook.SummaryReadyPayload{SessionID: "s1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if signature != "" {
		t.Fatalf("unexpected signature %q", signature)
	}
}

func TestSendSummaryReady_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewHTTPSender(server.URL, "").SendSummaryReady(context.Background(), webhook.SummaryReadyPayload{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "bad payload") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}

func TestSignIsStable(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	a := Sign([]byte("k"), ts, []byte(`{"a":1}`))
	if !strings.HasPrefix(a, webhook.SignaturePrefix) || len(a) != len(webhook.SignaturePrefix)+64 {
		t.Fatalf("unexpected signature shape %q", a)
	}
	if a != Sign([]byte("k"), ts, []byte(`{"a":1}`)) {
		t.Fatal("signature is not deterministic")
	}
	if a == Sign([]byte("k"), ts.Add(time.Second), []byte(`{"a":1}`)) {
		t.Fatal("timestamp should be part of the signature")
	}
}
