package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/meetingbot"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/foxseedlab/studentize/internal/summarizer"
	"github.com/foxseedlab/studentize/internal/webhook"
	"github.com/sethvargo/go-retry"
)

const (
	attachBotRetries     = 3
	attachBotBaseBackoff = 250 * time.Millisecond
)

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNoTranscript          = errors.New("session has no transcript")
	ErrNoMeetingLink         = errors.New("scheduled session has no meeting link")
	ErrScheduledSessionEnded = errors.New("scheduled session already ended")
	ErrMeetingBusy           = errors.New("meeting is already being recorded for another session")
	ErrUpstream              = errors.New("upstream failure")
)

// SummaryStarter enqueues the summary workflow for a session.
type SummaryStarter interface {
	StartSummary(ctx context.Context, sessionID string) error
}

// Service implements the session RPC procedures. Every method expects an
// auth.Principal in ctx.
type Service struct {
	repo       repository.Repository
	bots       meetingbot.Dispatcher
	summarizer summarizer.Summarizer
	webhook    webhook.Sender
	summaries  SummaryStarter
	metrics    *metrics.Metrics
	now        func() time.Time
	// attachBackoff is the first delay between attempts to record a dispatched bot.
	attachBackoff time.Duration
}

func NewService(repo repository.Repository, bots meetingbot.Dispatcher, sum summarizer.Summarizer, wh webhook.Sender, summaries SummaryStarter, m *metrics.Metrics) *Service {
	return &Service{
		repo:       repo,
		bots:       bots,
		summarizer: sum,
		webhook:    wh,
		summaries:  summaries,
		metrics:    m,
		now:        time.Now,

		attachBackoff: attachBotBaseBackoff,
	}
}

func (s *Service) CreateScheduledSession(ctx context.Context, in CreateScheduledSessionInput) (*ScheduledSessionView, error) {
	in.AdvisorUserID = strings.TrimSpace(in.AdvisorUserID)
	in.StudentUserID = strings.TrimSpace(in.StudentUserID)
	in.MeetingLink = strings.TrimSpace(in.MeetingLink)
	if in.AdvisorUserID == "" || in.StudentUserID == "" {
		return nil, fmt.Errorf("%w: advisorUserId and studentUserId are required", ErrInvalidInput)
	}
	if in.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduledAt is required", ErrInvalidInput)
	}
	if err := authorize(ctx, in.AdvisorUserID, in.StudentUserID); err != nil {
		return nil, err
	}
	row, err := s.repo.CreateScheduledSession(ctx, repository.CreateScheduledSessionInput{
		AdvisorUserID: in.AdvisorUserID,
		StudentUserID: in.StudentUserID,
		ScheduledAt:   in.ScheduledAt.UTC(),
		MeetingLink:   in.MeetingLink,
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduled session: %w", err)
	}
	slog.Info("scheduled session created", "scheduled_session_id", row.ID, "scheduled_at", in.ScheduledAt)
	return newScheduledSessionView(row), nil
}

func (s *Service) GetScheduledSession(ctx context.Context, id string) (*ScheduledSessionView, error) {
	row, err := s.loadScheduledSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return newScheduledSessionView(row), nil
}

func (s *Service) EndScheduledSession(ctx context.Context, id string) (*ScheduledSessionView, error) {
	row, err := s.loadScheduledSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.EndScheduledSession(ctx, row.ID, s.now().UTC()); err != nil {
		return nil, mapRepoError(err, "end scheduled session")
	}
	return s.GetScheduledSession(ctx, row.ID)
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*SessionView, error) {
	in.AdvisorUserID = strings.TrimSpace(in.AdvisorUserID)
	in.StudentUserID = strings.TrimSpace(in.StudentUserID)
	in.Title = strings.TrimSpace(in.Title)
	if in.AdvisorUserID == "" || in.StudentUserID == "" || in.Title == "" {
		return nil, fmt.Errorf("%w: advisorUserId, studentUserId and title are required", ErrInvalidInput)
	}
	if err := authorize(ctx, in.AdvisorUserID, in.StudentUserID); err != nil {
		return nil, err
	}
	row, err := s.repo.CreateSession(ctx, repository.CreateSessionInput{
		StudentUserID: in.StudentUserID,
		AdvisorUserID: in.AdvisorUserID,
		Title:         in.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return newSessionView(row), nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*SessionView, error) {
	row, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return newSessionView(row), nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	row, err := s.loadSession(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteSession(ctx, row.ID, s.now().UTC()); err != nil {
		return mapRepoError(err, "delete session")
	}
	slog.Info("session deleted", "session_id", row.ID)
	return nil
}

// SendBotToMeeting dispatches a meeting bot for a scheduled session. A scheduled
// session that already has a bot returns it unchanged.
//
// The Session is reserved on the scheduled session before the bot is sent, so a
// retried call dispatches into the same Session instead of creating another.
func (s *Service) SendBotToMeeting(ctx context.Context, scheduledSessionID string) (*SendBotResult, error) {
	scheduled, err := s.loadScheduledSession(ctx, scheduledSessionID)
	if err != nil {
		return nil, err
	}
	if scheduled.BotID != nil && scheduled.CreatedSessionID != nil {
		slog.Info("bot already attached", "scheduled_session_id", scheduled.ID, "bot_id", *scheduled.BotID)
		result := &SendBotResult{BotID: *scheduled.BotID, SessionID: *scheduled.CreatedSessionID}
		if run, err := s.repo.GetBotRun(ctx, *scheduled.BotID); err == nil {
			result.Provider = run.Provider
		}
		return result, nil
	}
	if scheduled.EndedAt != nil {
		return nil, ErrScheduledSessionEnded
	}
	if strings.TrimSpace(scheduled.MeetingLink) == "" {
		return nil, ErrNoMeetingLink
	}

	title := sessionTitle(scheduled)
	sessionID, err := s.reserveSession(ctx, scheduled, title)
	if err != nil {
		return nil, err
	}

	dispatch, err := s.bots.SendBot(ctx, meetingbot.BotRequest{
		ScheduledSessionID: scheduled.ID,
		SessionID:          sessionID,
		MeetingLink:        scheduled.MeetingLink,
		Title:              title,
	})
	if err != nil {
		s.metrics.RecordBotDispatch("", err)
		switch {
		case errors.Is(err, meetingbot.ErrUnsupportedMeetingLink), errors.Is(err, meetingbot.ErrNoProvider):
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		case errors.Is(err, meetingbot.ErrChannelBusy):
			return nil, fmt.Errorf("%w: %w", ErrMeetingBusy, err)
		}
		return nil, fmt.Errorf("%w: send bot: %w", ErrUpstream, err)
	}
	s.metrics.RecordBotDispatch(dispatch.Provider, nil)

	if err := s.attachBot(ctx, repository.AttachBotInput{
		ScheduledSessionID: scheduled.ID,
		BotID:              dispatch.BotID,
		SessionID:          sessionID,
		Provider:           dispatch.Provider,
	}); err != nil {
		slog.Error("bot dispatched but not recorded",
			"error", err,
			"scheduled_session_id", scheduled.ID,
			"session_id", sessionID,
			"bot_id", dispatch.BotID,
		)
		return nil, mapRepoError(err, "attach bot")
	}
	slog.Info("bot dispatched",
		"scheduled_session_id", scheduled.ID,
		"session_id", sessionID,
		"bot_id", dispatch.BotID,
		"provider", dispatch.Provider,
	)
	return &SendBotResult{BotID: dispatch.BotID, SessionID: sessionID, Provider: dispatch.Provider}, nil
}

// reserveSession returns the Session the bot records into, creating and
// reserving one on the first attempt. A concurrent caller that reserved first
// wins and the Session created here is discarded.
func (s *Service) reserveSession(ctx context.Context, scheduled *repository.ScheduledSession, title string) (string, error) {
	if scheduled.CreatedSessionID != nil {
		id := *scheduled.CreatedSessionID
		if _, err := s.repo.GetSession(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", fmt.Errorf("%w: session %s reserved for this schedule was deleted", ErrInvalidInput, id)
			}
			return "", fmt.Errorf("get reserved session: %w", err)
		}
		slog.Info("reusing reserved session", "scheduled_session_id", scheduled.ID, "session_id", id)
		return id, nil
	}

	created, err := s.repo.CreateSession(ctx, repository.CreateSessionInput{
		StudentUserID: scheduled.StudentUserID,
		AdvisorUserID: scheduled.AdvisorUserID,
		Title:         title,
	})
	if err != nil {
		return "", fmt.Errorf("create session for scheduled session: %w", err)
	}
	reserved, err := s.repo.ReserveSession(ctx, scheduled.ID, created.ID)
	if err != nil || reserved != created.ID {
		if delErr := s.repo.SoftDeleteSession(ctx, created.ID, s.now().UTC()); delErr != nil {
			slog.Warn("failed to discard unreserved session", "error", delErr, "session_id", created.ID)
		}
	}
	if err != nil {
		return "", mapRepoError(err, "reserve session")
	}
	return reserved, nil
}

// attachBot records the dispatched bot, retrying transient store failures so
// that a bot already in the meeting is not sent a second time.
func (s *Service) attachBot(ctx context.Context, in repository.AttachBotInput) error {
	backoff := retry.WithMaxRetries(attachBotRetries-1, retry.NewExponential(s.attachBackoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.repo.AttachBot(ctx, in)
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return err
		}
		slog.Warn("failed to record dispatched bot", "error", err, "attempt", attempt, "bot_id", in.BotID)
		return retry.RetryableError(err)
	})
}

// SummarizeTranscription regenerates the session summary from its transcript and
// overwrites the stored one. The previous summary is handed to the model to merge.
func (s *Service) SummarizeTranscription(ctx context.Context, sessionID string) (*summarizer.Summary, error) {
	row, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	segments, err := s.repo.ListSegmentsBySessionID(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list transcript segments: %w", err)
	}
	transcript := summarizer.FormatTranscript(segments)
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrNoTranscript
	}

	var previous *summarizer.Summary
	if len(row.Summary) > 0 {
		var prev summarizer.Summary
		if err := json.Unmarshal(row.Summary, &prev); err != nil {
			slog.Warn("stored summary is not valid; regenerating from scratch", "error", err, "session_id", row.ID)
		} else {
			previous = &prev
		}
	}

	summary, err := s.summarizer.Summarize(ctx, summarizer.Request{
		SessionTitle: row.Title,
		Transcript:   transcript,
		Previous:     previous,
	})
	s.metrics.RecordSummary(err)
	if err != nil {
		return nil, fmt.Errorf("%w: summarize: %w", ErrUpstream, err)
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.repo.UpdateSessionSummary(ctx, row.ID, raw); err != nil {
		return nil, mapRepoError(err, "store summary")
	}
	slog.Info("session summary stored", "session_id", row.ID, "segment_count", len(segments))

	if err := s.webhook.SendSummaryReady(ctx, webhook.SummaryReadyPayload{
		SchemaVersion: webhook.SummaryWebhookSchemaVersion,
		Event:         webhook.EventSummaryReady,
		SessionID:     row.ID,
		StudentUserID: row.StudentUserID,
		AdvisorUserID: row.AdvisorUserID,
		Title:         row.Title,
		SegmentCount:  len(segments),
		Summary:       summary,
		GeneratedAt:   s.now().UTC(),
	}); err != nil {
		slog.Error("failed to send summary webhook", "error", err, "session_id", row.ID)
	}
	return summary, nil
}

// IngestBotTranscript stores transcript segments delivered by the vendor bot and
// enqueues the summary workflow for the bot's session. A delivery is stored at
// most once: deliveryID identifies it when the vendor sends one, otherwise the
// segment content does. A repeated delivery stores nothing but still enqueues
// the summary, since the first attempt may have failed after storing.
func (s *Service) IngestBotTranscript(ctx context.Context, botID, deliveryID string, segments []IngestSegment) (*IngestResult, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	if !p.IsService() {
		return nil, ErrForbidden
	}
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return nil, fmt.Errorf("%w: botId is required", ErrInvalidInput)
	}
	run, err := s.repo.GetBotRun(ctx, botID)
	if err != nil {
		return nil, mapRepoError(err, "get bot run")
	}

	batch := make([]repository.NewSegment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		spokenAt := seg.SpokenAt
		if spokenAt.IsZero() {
			spokenAt = s.now()
		}
		batch = append(batch, repository.NewSegment{
			Speaker:  strings.TrimSpace(seg.Speaker),
			Content:  text,
			SpokenAt: spokenAt.UTC(),
		})
	}
	result := &IngestResult{SessionID: run.SessionID}
	if len(batch) == 0 {
		return result, nil
	}

	key := strings.TrimSpace(deliveryID)
	if key == "" {
		key = deliveryKey(segments)
	}
	stored, err := s.repo.AppendSegments(ctx, repository.AppendSegmentsInput{
		SessionID:   run.SessionID,
		BotID:       botID,
		DeliveryKey: key,
		Segments:    batch,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateDelivery):
		slog.Info("bot transcript delivery already stored", "bot_id", botID, "session_id", run.SessionID, "delivery_key", key)
		result.Duplicate = true
	case err != nil:
		return nil, mapRepoError(err, "store transcript segments")
	}
	result.Stored = stored
	slog.Info("bot transcript ingested", "bot_id", botID, "session_id", run.SessionID, "stored", stored)

	if err := s.summaries.StartSummary(ctx, run.SessionID); err != nil {
		s.metrics.RecordWorkflowStart("summary", err)
		return nil, fmt.Errorf("%w: start summary workflow: %w", ErrUpstream, err)
	}
	s.metrics.RecordWorkflowStart("summary", nil)
	result.SummaryQueued = true
	return result, nil
}

// deliveryKey hashes the raw segments so a re-sent body maps to the same key.
func deliveryKey(segments []IngestSegment) string {
	h := sha256.New()
	for _, seg := range segments {
		fmt.Fprintf(h, "%s\x00%s\x00%d\x1e", seg.Speaker, seg.Text, seg.SpokenAt.UnixNano())
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) loadScheduledSession(ctx context.Context, id string) (*repository.ScheduledSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if _, ok := auth.PrincipalFrom(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	row, err := s.repo.GetScheduledSession(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get scheduled session")
	}
	if err := authorize(ctx, row.AdvisorUserID, row.StudentUserID); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) loadSession(ctx context.Context, id string) (*repository.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if _, ok := auth.PrincipalFrom(ctx); !ok {
		return nil, auth.ErrUnauthorized
	}
	row, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get session")
	}
	if err := authorize(ctx, row.AdvisorUserID, row.StudentUserID); err != nil {
		return nil, err
	}
	return row, nil
}

// authorize lets the service principal through and otherwise requires the caller
// to be one of the two participants.
func authorize(ctx context.Context, advisorUserID, studentUserID string) error {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return auth.ErrUnauthorized
	}
	if p.IsService() {
		return nil
	}
	if p.UserID != "" && (p.UserID == advisorUserID || p.UserID == studentUserID) {
		return nil
	}
	return ErrForbidden
}

func mapRepoError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func sessionTitle(scheduled *repository.ScheduledSession) string {
	if scheduled.ScheduledAt == nil {
		return "Advising session"
	}
	return "Advising session " + scheduled.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC")
}
