package repository

import "time"

type ScheduledSession struct {
	ID               string
	AdvisorUserID    string
	StudentUserID    string
	ScheduledAt      *time.Time
	MeetingLink      string
	BotID            *string
	CreatedSessionID *string
	EndedAt          *time.Time
	CreatedAt        time.Time
}

type Session struct {
	ID            string
	StudentUserID string
	AdvisorUserID string
	Title         string
	Summary       []byte
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

type TranscriptSegment struct {
	ID           string
	SessionID    string
	Speaker      string
	Content      string
	SegmentIndex int
	SpokenAt     time.Time
	CreatedAt    time.Time
}

type BotRunStatus string

const (
	BotRunStatusDispatched BotRunStatus = "dispatched"
	BotRunStatusCompleted  BotRunStatus = "completed"
)

type BotRun struct {
	BotID     string
	SessionID string
	Provider  string
	Status    BotRunStatus
	StartedAt time.Time
	EndedAt   *time.Time
}
