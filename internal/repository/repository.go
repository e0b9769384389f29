package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateDelivery = errors.New("transcript delivery already stored")
)

type CreateScheduledSessionInput struct {
	AdvisorUserID string
	StudentUserID string
	ScheduledAt   time.Time
	MeetingLink   string
}

// AttachBotInput records a dispatched bot. The bot run and the scheduled
// session's bot id are written together.
type AttachBotInput struct {
	ScheduledSessionID string
	BotID              string
	SessionID          string
	Provider           string
}

type CreateSessionInput struct {
	StudentUserID string
	AdvisorUserID string
	Title         string
}

type InsertSegmentInput struct {
	SessionID    string
	Speaker      string
	Content      string
	SegmentIndex int
	SpokenAt     time.Time
}

type NewSegment struct {
	Speaker  string
	Content  string
	SpokenAt time.Time
}

// AppendSegmentsInput is one transcript delivery. DeliveryKey identifies the
// delivery per bot; a key that was already stored yields ErrDuplicateDelivery.
type AppendSegmentsInput struct {
	SessionID   string
	BotID       string
	DeliveryKey string
	Segments    []NewSegment
}

type ScheduledSessionRepository interface {
	CreateScheduledSession(ctx context.Context, input CreateScheduledSessionInput) (*ScheduledSession, error)
	GetScheduledSession(ctx context.Context, id string) (*ScheduledSession, error)
	// ReserveSession sets created_session_id unless one is already set and
	// returns the id that ends up stored.
	ReserveSession(ctx context.Context, scheduledSessionID, sessionID string) (string, error)
	AttachBot(ctx context.Context, input AttachBotInput) error
	EndScheduledSession(ctx context.Context, id string, endedAt time.Time) error
	EndStaleScheduledSessions(ctx context.Context, scheduledBefore, endedAt time.Time) (int64, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionSummary(ctx context.Context, id string, summary []byte) error
	SoftDeleteSession(ctx context.Context, id string, deletedAt time.Time) error
}

type TranscriptRepository interface {
	InsertSegment(ctx context.Context, input InsertSegmentInput) error
	NextSegmentIndex(ctx context.Context, sessionID string) (int, error)
	// AppendSegments stores a delivery after the session's last segment index,
	// all or nothing.
	AppendSegments(ctx context.Context, input AppendSegmentsInput) (int, error)
	ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]TranscriptSegment, error)
}

type BotRunRepository interface {
	GetBotRun(ctx context.Context, botID string) (*BotRun, error)
	UpdateBotRunStatus(ctx context.Context, botID string, status BotRunStatus, at time.Time) error
}

type Repository interface {
	ScheduledSessionRepository
	SessionRepository
	TranscriptRepository
	BotRunRepository
}
