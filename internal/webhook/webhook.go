package webhook

import (
	"context"
	"time"
)

const (
	SummaryWebhookSchemaVersion = 1
	EventSummaryReady           = "session.summary.ready"

	HeaderEvent     = "X-Studentize-Event"
	HeaderDelivery  = "X-Studentize-Delivery"
	HeaderTimestamp = "X-Studentize-Timestamp"
	HeaderSignature = "X-Studentize-Signature"
	SignaturePrefix = "sha256="
)

type SummaryReadyPayload struct {
	SchemaVersion int       `json:"schemaVersion"`
	Event         string    `json:"event"`
	SessionID     string    `json:"sessionId"`
	StudentUserID string    `json:"studentUserId"`
	AdvisorUserID string    `json:"advisorUserId"`
	Title         string    `json:"title"`
	SegmentCount  int       `json:"segmentCount"`
	Summary       any       `json:"summary"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Sender delivers summary notifications to the integrator's endpoint. A sender
// without a configured URL is a no-op.
type Sender interface {
	SendSummaryReady(ctx context.Context, payload SummaryReadyPayload) error
}
