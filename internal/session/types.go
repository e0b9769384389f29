package session

import (
	"encoding/json"
	"time"

	"github.com/foxseedlab/studentize/internal/repository"
)

type CreateScheduledSessionInput struct {
	AdvisorUserID string    `json:"advisorUserId"`
	StudentUserID string    `json:"studentUserId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	MeetingLink   string    `json:"meetingLink"`
}

type CreateSessionInput struct {
	StudentUserID string `json:"studentUserId"`
	AdvisorUserID string `json:"advisorUserId"`
	Title         string `json:"title"`
}

type ScheduledSessionView struct {
	ID               string     `json:"id"`
	AdvisorUserID    string     `json:"advisorUserId"`
	StudentUserID    string     `json:"studentUserId"`
	ScheduledAt      *time.Time `json:"scheduledAt"`
	MeetingLink      string     `json:"meetingLink"`
	BotID            *string    `json:"botId,omitempty"`
	CreatedSessionID *string    `json:"createdSessionId,omitempty"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type SessionView struct {
	ID            string          `json:"id"`
	StudentUserID string          `json:"studentUserId"`
	AdvisorUserID string          `json:"advisorUserId"`
	Title         string          `json:"title"`
	Summary       json.RawMessage `json:"summary,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type SendBotResult struct {
	BotID     string `json:"botId"`
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider,omitempty"`
}

// IngestSegment is one utterance in a vendor transcript delivery.
type IngestSegment struct {
	Speaker  string    `json:"speaker"`
	Text     string    `json:"text"`
	SpokenAt time.Time `json:"spokenAt"`
}

type IngestResult struct {
	SessionID     string `json:"sessionId"`
	Stored        int    `json:"stored"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	SummaryQueued bool   `json:"summaryQueued"`
}

func newScheduledSessionView(row *repository.ScheduledSession) *ScheduledSessionView {
	return &ScheduledSessionView{
		ID:               row.ID,
		AdvisorUserID:    row.AdvisorUserID,
		StudentUserID:    row.StudentUserID,
		ScheduledAt:      row.ScheduledAt,
		MeetingLink:      row.MeetingLink,
		BotID:            row.BotID,
		CreatedSessionID: row.CreatedSessionID,
		EndedAt:          row.EndedAt,
		CreatedAt:        row.CreatedAt,
	}
}

func newSessionView(row *repository.Session) *SessionView {
	view := &SessionView{
		ID:            row.ID,
		StudentUserID: row.StudentUserID,
		AdvisorUserID: row.AdvisorUserID,
		Title:         row.Title,
		CreatedAt:     row.CreatedAt,
	}
	if len(row.Summary) > 0 {
		view.Summary = json.RawMessage(row.Summary)
	}
	return view
}
