package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DataChannelLabel is the channel the realtime API exchanges JSON events on.
const DataChannelLabel = "oai-events"

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
	StateDisconnected State = "disconnected"
)

type PeerState int

const (
	PeerStateConnecting PeerState = iota
	PeerStateConnected
	PeerStateDisconnected
	PeerStateFailed
	PeerStateClosed
)

var ErrConnectionReplaced = errors.New("connection was torn down while connecting")

type DataChannel interface {
	IsOpen() bool
	SendText(text string) error
	OnMessage(fn func(data []byte))
	Close() error
}

// AudioCapture yields encoded Opus frames from a local input device.
type AudioCapture interface {
	ReadFrame() (frame []byte, duration time.Duration, err error)
	SetEnabled(enabled bool)
	Close() error
}

type Microphone interface {
	Acquire(ctx context.Context) (AudioCapture, error)
}

type Peer interface {
	AttachAudio(capture AudioCapture) error
	CreateDataChannel(label string) (DataChannel, error)
	// CreateOffer returns the local SDP once ICE gathering has finished.
	CreateOffer(ctx context.Context) (string, error)
	SetAnswer(sdp string) error
	OnStateChange(fn func(PeerState))
	Close() error
}

type PeerFactory func() (Peer, error)

type Signaler interface {
	Exchange(ctx context.Context, offerSDP, token string) (answerSDP string, err error)
}

// Session is a client-side realtime voice call. One Session owns at most one
// live peer connection at a time.
type Session struct {
	newPeer    PeerFactory
	microphone Microphone
	signaler   Signaler
	transcript *Transcript

	mu       sync.Mutex
	state    State
	err      error
	peer     Peer
	channel  DataChannel
	capture  AudioCapture
	muted    bool
	attempt  uint64
	onUpdate func()
}

func NewSession(newPeer PeerFactory, mic Microphone, sig Signaler) (*Session, error) {
	peer, err := newPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &Session{
		newPeer:    newPeer,
		microphone: mic,
		signaler:   sig,
		transcript: &Transcript{},
		state:      StateIdle,
		peer:       peer,
	}, nil
}

// OnUpdate registers a callback fired after state or transcript changes. It runs
// without the session lock held.
func (s *Session) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) Transcript() []Entry {
	return s.transcript.Entries()
}

// Connect acquires the microphone, negotiates with the realtime API through the
// signaler and moves to connected. A call made while another Connect is in
// flight, or while already connected, returns nil without touching state.
func (s *Session) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	if s.peer == nil {
		peer, err := s.newPeer()
		if err != nil {
			s.state = StateFailed
			s.err = fmt.Errorf("create peer connection: %w", err)
			s.mu.Unlock()
			s.notify()
			return s.Err()
		}
		s.peer = peer
	}
	s.attempt++
	attempt := s.attempt
	peer := s.peer
	s.state = StateConnecting
	s.err = nil
	s.mu.Unlock()
	s.notify()

	capture, channel, err := s.negotiate(ctx, peer, token, attempt)
	s.mu.Lock()
	if attempt != s.attempt {
		// Disconnect ran while negotiating and already rebuilt the peer.
		s.mu.Unlock()
		releaseLocal(capture, channel)
		return ErrConnectionReplaced
	}
	if err != nil {
		s.failLocked(err)
		s.mu.Unlock()
		releaseLocal(capture, channel)
		s.notify()
		return err
	}
	s.capture = capture
	s.channel = channel
	s.state = StateConnected
	s.mu.Unlock()

	slog.Info("voice session connected")
	s.notify()
	return nil
}

func (s *Session) negotiate(ctx context.Context, peer Peer, token string, attempt uint64) (AudioCapture, DataChannel, error) {
	capture, err := s.microphone.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("microphone unavailable: %w", err)
	}
	if err := peer.AttachAudio(capture); err != nil {
		return capture, nil, fmt.Errorf("attach audio track: %w", err)
	}
	channel, err := peer.CreateDataChannel(DataChannelLabel)
	if err != nil {
		return capture, nil, fmt.Errorf("open data channel: %w", err)
	}
	channel.OnMessage(s.handleMessage)
	peer.OnStateChange(func(ps PeerState) { s.handlePeerState(attempt, ps) })

	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		return capture, channel, fmt.Errorf("create offer: %w", err)
	}
	answer, err := s.signaler.Exchange(ctx, offer, token)
	if err != nil {
		return capture, channel, err
	}
	if err := peer.SetAnswer(answer); err != nil {
		return capture, channel, fmt.Errorf("apply answer: %w", err)
	}
	return capture, channel, nil
}

// failLocked records err, closes the peer and prepares a fresh one for the next
// attempt. s.mu must be held.
func (s *Session) failLocked(err error) {
	slog.Warn("voice session failed", "error", err)
	s.state = StateFailed
	s.err = err
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	releaseLocal(s.capture, s.channel)
	s.capture = nil
	s.channel = nil
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			slog.Warn("failed to close peer connection", "error", err)
		}
	}
	s.peer = nil
	peer, err := s.newPeer()
	if err != nil {
		slog.Warn("failed to prepare a new peer connection", "error", err)
		return
	}
	s.peer = peer
}

func releaseLocal(capture AudioCapture, channel DataChannel) {
	if channel != nil {
		if err := channel.Close(); err != nil {
			slog.Debug("failed to close data channel", "error", err)
		}
	}
	if capture != nil {
		if err := capture.Close(); err != nil {
			slog.Debug("failed to stop microphone", "error", err)
		}
	}
}

// Disconnect tears the call down and leaves an idle session that can connect again.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.attempt++
	s.teardownLocked()
	s.state = StateIdle
	s.err = nil
	s.muted = false
	s.mu.Unlock()
	slog.Info("voice session disconnected")
	s.notify()
}

// ToggleMute flips the outbound audio; it does nothing without a live connection.
func (s *Session) ToggleMute() {
	s.mu.Lock()
	if s.capture == nil || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.muted = !s.muted
	s.capture.SetEnabled(!s.muted)
	s.mu.Unlock()
	s.notify()
}

// SendEvent serialises v onto the data channel. When the channel is not open the
// event is dropped with a warning.
func (s *Session) SendEvent(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("voice event is not serialisable; dropped", "error", err)
		return
	}
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()
	if channel == nil || !channel.IsOpen() {
		slog.Warn("data channel is not open; event dropped")
		return
	}
	if err := channel.SendText(string(payload)); err != nil {
		slog.Warn("failed to send voice event", "error", err)
	}
}

func (s *Session) handleMessage(data []byte) {
	if s.transcript.Apply(data) {
		s.notify()
	}
}

func (s *Session) handlePeerState(attempt uint64, ps PeerState) {
	s.mu.Lock()
	if attempt != s.attempt || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	switch ps {
	case PeerStateFailed:
		s.failLocked(errors.New("peer connection failed"))
	case PeerStateDisconnected, PeerStateClosed:
		s.teardownLocked()
		s.state = StateDisconnected
		s.muted = false
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
