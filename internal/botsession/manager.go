package botsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/studentize/internal/audio"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/discord"
	"github.com/foxseedlab/studentize/internal/meetingbot"
	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/foxseedlab/studentize/internal/transcriber"
	"github.com/google/uuid"
)

const (
	audioMixInterval = 20 * time.Millisecond
	audioFrameBytes  = 960 * 2 * 2
	statsInterval    = 30 * time.Second

	stopReasonParticipantsLeft = "participants_left"
	stopReasonMaxDuration      = "max_duration"
	stopReasonBotRemoved       = "bot_removed"
	stopReasonServerClosed     = "server_closed"

	messageRecordingStarted = "Studentize is recording and transcribing this session."
	messageRecordingStopped = "Studentize stopped recording. The session summary will be ready shortly."
)

// SummaryStarter enqueues the summary workflow once a recording has finished.
type SummaryStarter interface {
	StartSummary(ctx context.Context, sessionID string) error
}

// Manager runs the in-house Discord meeting bot: one recording per voice channel.
type Manager struct {
	cfg         *config.Config
	repo        repository.Repository
	discord     discord.Client
	transcriber transcriber.Transcriber
	newMixer    audio.MixerFactory
	summaries   SummaryStarter

	mu          sync.Mutex
	sessions    map[string]*runningSession
	stopReasons map[string]string
	botUserID   string
	stopped     sync.WaitGroup
}

type runningSession struct {
	sessionID          string
	scheduledSessionID string
	botID              string
	guildID            string
	channelID          string
	voice              discord.VoiceConnection
	mixer              audio.Mixer
	writer             transcriber.StreamWriter
	cancel             context.CancelFunc
	maxTimer           *time.Timer
	participants       map[string]struct{}
	speakers           *speakerTracker
}

func NewManager(cfg *config.Config, repo repository.Repository, dc discord.Client, stt transcriber.Transcriber, newMixer audio.MixerFactory, summaries SummaryStarter) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		discord:     dc,
		transcriber: stt,
		newMixer:    newMixer,
		summaries:   summaries,
		sessions:    make(map[string]*runningSession),
		stopReasons: make(map[string]string),
	}
}

func (m *Manager) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}

func (m *Manager) sessionKey(guildID, channelID string) string {
	return guildID + ":" + channelID
}

// SendBot joins the Discord voice channel named by the meeting link. A repeated
// request for the session a channel is already recording returns the running
// bot; a request for any other session is refused with ErrChannelBusy.
func (m *Manager) SendBot(_ context.Context, req meetingbot.BotRequest) (*meetingbot.Dispatch, error) {
	guildID, channelID, ok := meetingbot.ParseDiscordLink(req.MeetingLink)
	if !ok {
		return nil, fmt.Errorf("%w: %q", meetingbot.ErrUnsupportedMeetingLink, req.MeetingLink)
	}
	key := m.sessionKey(guildID, channelID)

	m.mu.Lock()
	if rs, exists := m.sessions[key]; exists {
		m.mu.Unlock()
		if rs.sessionID != req.SessionID {
			slog.Warn("voice channel is recording another session", "session_key", key, "session_id", rs.sessionID, "requested_session_id", req.SessionID)
			return nil, fmt.Errorf("%w: channel %s records session %s", meetingbot.ErrChannelBusy, channelID, rs.sessionID)
		}
		slog.Info("voice channel already recording; reusing bot", "session_key", key, "bot_id", rs.botID, "session_id", rs.sessionID)
		return &meetingbot.Dispatch{BotID: rs.botID, Provider: meetingbot.ProviderDiscord}, nil
	}
	m.mu.Unlock()

	botID := "discord-" + uuid.NewString()
	if err := m.startSession(req, guildID, channelID, botID); err != nil {
		return nil, err
	}
	return &meetingbot.Dispatch{BotID: botID, Provider: meetingbot.ProviderDiscord}, nil
}

func (m *Manager) startSession(req meetingbot.BotRequest, guildID, channelID, botID string) error {
	key := m.sessionKey(guildID, channelID)
	slog.Info("starting discord recording", "session_key", key, "session_id", req.SessionID, "bot_id", botID)

	voice, err := m.discord.JoinVoiceChannel(guildID, channelID)
	if err != nil {
		slog.Error("failed to join voice channel", "error", err, "guild_id", guildID, "channel_id", channelID)
		return err
	}

	participants := make(map[string]struct{})
	list, err := m.discord.ListVoiceChannelParticipants(guildID, channelID)
	if err != nil {
		slog.Warn("failed to list voice channel participants", "error", err, "channel_id", channelID)
	}
	for _, p := range list {
		if p.IsBot || p.UserID == m.selfID() {
			continue
		}
		participants[p.UserID] = struct{}{}
	}

	ctx := context.Background()
	nextIndex, err := m.repo.NextSegmentIndex(ctx, req.SessionID)
	if err != nil {
		_ = voice.Disconnect()
		return fmt.Errorf("next segment index: %w", err)
	}

	mixer := m.newMixer()
	speakers := newSpeakerTracker()
	streamCtx, cancel := context.WithCancel(context.Background())
	receiver := &resultReceiver{manager: m, sessionID: req.SessionID, speakers: speakers, nextIndex: nextIndex}
	writer, err := m.transcriber.StartStreaming(streamCtx, req.SessionID, m.cfg.DefaultTranscribeLanguage, receiver)
	if err != nil {
		cancel()
		mixer.Close()
		_ = voice.Disconnect()
		slog.Error("failed to start transcriber streaming", "error", err, "session_id", req.SessionID)
		return err
	}

	rs := &runningSession{
		sessionID:          req.SessionID,
		scheduledSessionID: req.ScheduledSessionID,
		botID:              botID,
		guildID:            guildID,
		channelID:          channelID,
		voice:              voice,
		mixer:              mixer,
		writer:             writer,
		cancel:             cancel,
		participants:       participants,
		speakers:           speakers,
	}
	m.mu.Lock()
	if existing, exists := m.sessions[key]; exists {
		m.mu.Unlock()
		cancel()
		_ = writer.Close()
		mixer.Close()
		return fmt.Errorf("%w: channel %s records session %s", meetingbot.ErrChannelBusy, channelID, existing.sessionID)
	}
	m.sessions[key] = rs
	rs.maxTimer = time.AfterFunc(m.cfg.MaxBotSessionDuration(), func() {
		if err := m.stopSession(guildID, channelID, stopReasonMaxDuration); err != nil {
			slog.Error("failed to stop session at max duration", "error", err, "session_id", req.SessionID)
		}
	})
	m.mu.Unlock()
	slog.Info("discord recording active", "session_key", key, "session_id", req.SessionID, "participants", len(participants))

	if err := m.discord.SendChannelMessage(channelID, messageRecordingStarted); err != nil {
		slog.Warn("failed to post recording notice", "error", err, "channel_id", channelID)
	}

	var receivedOpusPackets int64
	go voice.ReceiveAudio(func(userID string, opusPacket []byte) {
		atomic.AddInt64(&receivedOpusPackets, 1)
		mixer.WriteOpusPacket(userID, opusPacket)
	})
	go m.streamMixedAudio(streamCtx, req.SessionID, mixer, writer, speakers, &receivedOpusPackets)
	return nil
}

// HandleVoiceStateUpdate tracks who is in recorded channels and stops a recording once
// every human has left or the bot itself was removed.
func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.UserID == m.selfID() {
		if event.BeforeChannelID != "" && m.isSessionRunning(event.GuildID, event.BeforeChannelID) {
			if err := m.stopSession(event.GuildID, event.BeforeChannelID, stopReasonBotRemoved); err != nil {
				slog.Error("failed to stop session after bot removal", "error", err)
			}
		}
		return
	}
	if event.UserIsBot {
		return
	}
	if event.AfterChannelID != "" {
		m.addParticipant(event.GuildID, event.AfterChannelID, event.UserID)
	}
	if event.BeforeChannelID != "" {
		if err := m.removeParticipantAndMaybeStop(event.GuildID, event.BeforeChannelID, event.UserID); err != nil {
			slog.Error("failed to stop session", "error", err)
		}
	}
}

func (m *Manager) selfID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

func (m *Manager) isSessionRunning(guildID, channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[m.sessionKey(guildID, channelID)]
	return ok
}

func (m *Manager) addParticipant(guildID, channelID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs, ok := m.sessions[m.sessionKey(guildID, channelID)]; ok {
		rs.participants[userID] = struct{}{}
	}
}

func (m *Manager) removeParticipantAndMaybeStop(guildID, channelID, userID string) error {
	key := m.sessionKey(guildID, channelID)
	m.mu.Lock()
	rs, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(rs.participants, userID)
	remaining := len(rs.participants)
	m.mu.Unlock()
	if remaining > 0 {
		return nil
	}
	return m.stopSession(guildID, channelID, stopReasonParticipantsLeft)
}

func (m *Manager) streamMixedAudio(ctx context.Context, sessionID string, mixer audio.Mixer, writer transcriber.StreamWriter, speakers *speakerTracker, receivedOpusPackets *int64) {
	ticker := time.NewTicker(audioMixInterval)
	statsTicker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	defer statsTicker.Stop()
	buf := make([]byte, audioFrameBytes)
	var writtenFrames int64
	for {
		select {
		case <-ctx.Done():
			slog.Debug("audio mixer loop stopped", "session_id", sessionID, "written_frames", writtenFrames)
			return
		case <-statsTicker.C:
			slog.Debug("audio pipeline stats",
				"session_id", sessionID,
				"received_opus_packets", atomic.LoadInt64(receivedOpusPackets),
				"written_frames", writtenFrames)
		case <-ticker.C:
			frame, err := mixer.ReadMixedFrame(buf)
			if err != nil {
				slog.Warn("failed to read mixed pcm", "error", err, "session_id", sessionID)
				continue
			}
			if frame.N == 0 {
				continue
			}
			speakers.observe(frame.Speakers)
			if err := writer.Write(buf[:frame.N]); err != nil {
				slog.Error("failed to write pcm to transcriber stream", "error", err, "session_id", sessionID)
				return
			}
			writtenFrames++
		}
	}
}

func (m *Manager) stopSession(guildID, channelID, reason string) error {
	key := m.sessionKey(guildID, channelID)
	m.mu.Lock()
	rs, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
		m.stopReasons[rs.sessionID] = reason
		if rs.maxTimer != nil {
			rs.maxTimer.Stop()
		}
		m.stopped.Add(1)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	slog.Info("stopping discord recording", "session_id", rs.sessionID, "bot_id", rs.botID, "reason", reason)
	rs.cancel()
	_ = rs.writer.Close()
	rs.mixer.Close()
	_ = rs.voice.Disconnect()
	if reason != stopReasonBotRemoved {
		_ = m.discord.SendChannelMessage(channelID, messageRecordingStopped)
	}

	go func() {
		defer m.stopped.Done()
		m.finalizeSession(rs)
	}()
	return nil
}

// Shutdown stops every active recording and waits for them to be finalized.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	active := make([]*runningSession, 0, len(m.sessions))
	for _, rs := range m.sessions {
		active = append(active, rs)
	}
	m.mu.Unlock()
	for _, rs := range active {
		_ = m.stopSession(rs.guildID, rs.channelID, stopReasonServerClosed)
	}
	m.stopped.Wait()
}

func (m *Manager) finalizeSession(rs *runningSession) {
	ctx := context.Background()
	now := time.Now()
	if err := m.repo.UpdateBotRunStatus(ctx, rs.botID, repository.BotRunStatusCompleted, now); err != nil {
		slog.Error("failed to complete bot run", "error", err, "bot_id", rs.botID)
	}
	if rs.scheduledSessionID != "" {
		if err := m.repo.EndScheduledSession(ctx, rs.scheduledSessionID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to end scheduled session", "error", err, "scheduled_session_id", rs.scheduledSessionID)
		}
	}
	segments, err := m.repo.ListSegmentsBySessionID(ctx, rs.sessionID)
	if err != nil {
		slog.Error("failed to list transcript segments", "error", err, "session_id", rs.sessionID)
		return
	}
	if len(segments) == 0 {
		slog.Info("recording produced no transcript; skipping summary", "session_id", rs.sessionID)
		return
	}
	if err := m.summaries.StartSummary(ctx, rs.sessionID); err != nil {
		slog.Error("failed to start summary workflow", "error", err, "session_id", rs.sessionID)
	}
}

func (m *Manager) handleTranscriptionResult(sessionID string, segmentIndex int, speaker, text string, spokenAt time.Time) {
	if spokenAt.IsZero() {
		spokenAt = time.Now()
	}
	ctx := context.Background()
	if err := m.repo.InsertSegment(ctx, repository.InsertSegmentInput{
		SessionID:    sessionID,
		Speaker:      speaker,
		Content:      text,
		SegmentIndex: segmentIndex,
		SpokenAt:     spokenAt,
	}); err != nil {
		slog.Error("failed to insert segment", "error", err, "session_id", sessionID)
	}
}

type resultReceiver struct {
	manager   *Manager
	sessionID string
	speakers  *speakerTracker
	mu        sync.Mutex
	nextIndex int
}

func (r *resultReceiver) OnResult(result transcriber.Result) {
	if !result.IsFinal || strings.TrimSpace(result.Text) == "" {
		return
	}
	r.mu.Lock()
	idx := r.nextIndex
	r.nextIndex++
	r.mu.Unlock()
	r.manager.handleTranscriptionResult(r.sessionID, idx, r.speakers.take(), strings.TrimSpace(result.Text), result.SpokenAt)
}

func (r *resultReceiver) OnError(err error) {
	reason := r.manager.takeStopReason(r.sessionID)
	if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "operation was cancelled") {
		slog.Info("transcriber stream canceled", "error", err, "session_id", r.sessionID, "reason", reason)
		return
	}
	slog.Error("transcriber stream error", "error", err, "session_id", r.sessionID, "reason", reason)
}

func (m *Manager) takeStopReason(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason := m.stopReasons[sessionID]
	delete(m.stopReasons, sessionID)
	if reason == "" {
		return "unknown (likely remote stream close or network interruption)"
	}
	return reason
}

// speakerTracker remembers which Discord users were heard since the last final result.
type speakerTracker struct {
	mu    sync.Mutex
	heard map[string]struct{}
}

func newSpeakerTracker() *speakerTracker {
	return &speakerTracker{heard: make(map[string]struct{})}
}

func (s *speakerTracker) observe(userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		s.heard[id] = struct{}{}
	}
}

func (s *speakerTracker) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heard) == 0 {
		return ""
	}
	ids := make([]string, 0, len(s.heard))
	for id := range s.heard {
		ids = append(ids, "discord:"+id)
	}
	s.heard = make(map[string]struct{})
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
