package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/foxseedlab/studentize/internal/voice"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	opusClockRate = 48000
	opusChannels  = 2
)

var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Peer is a voice.Peer backed by a pion PeerConnection. Remote audio is written
// as Ogg/Opus to the configured sink when one is set.
type Peer struct {
	pc   *pion.PeerConnection
	sink io.Writer

	mu      sync.Mutex
	onState func(voice.PeerState)
	ogg     *oggwriter.OggWriter
}

// NewPeerFactory returns a voice.PeerFactory. sink may be nil to discard the
// assistant's audio.
func NewPeerFactory(iceServers []string, sink io.Writer) voice.PeerFactory {
	return func() (voice.Peer, error) {
		return NewPeer(iceServers, sink)
	}
}

func NewPeer(iceServers []string, sink io.Writer) (*Peer, error) {
	cfg := pion.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []pion.ICEServer{{URLs: iceServers}}
	}
	pc, err := pion.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	p := &Peer{pc: pc, sink: sink}
	pc.OnConnectionStateChange(p.handleState)
	pc.OnTrack(p.handleTrack)
	return p, nil
}

func (p *Peer) AttachAudio(capture voice.AudioCapture) error {
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: opusClockRate, Channels: opusChannels},
		"audio", "studentize-voice",
	)
	if err != nil {
		return fmt.Errorf("new audio track: %w", err)
	}
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}

	// RTCP has to be drained for the interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	go func() {
		for {
			frame, duration, err := capture.ReadFrame()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					slog.Debug("microphone stream ended", "error", err)
				}
				return
			}
			if err := track.WriteSample(media.Sample{Data: frame, Duration: duration}); err != nil {
				if errors.Is(err, io.ErrClosedPipe) {
					return
				}
				slog.Debug("failed to write audio sample", "error", err)
			}
		}
	}()
	return nil
}

func (p *Peer) CreateDataChannel(label string) (voice.DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel %q: %w", label, err)
	}
	return &dataChannel{dc: dc}, nil
}

func (p *Peer) CreateOffer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	gathered := pion.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return p.pc.LocalDescription().SDP, nil
}

func (p *Peer) SetAnswer(sdp string) error {
	return p.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) OnStateChange(fn func(voice.PeerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// Close detaches the state callback before closing so the owner never hears
// about a teardown it started itself.
func (p *Peer) Close() error {
	p.mu.Lock()
	ogg := p.ogg
	p.ogg = nil
	p.onState = nil
	p.mu.Unlock()
	if ogg != nil {
		if err := ogg.Close(); err != nil {
			slog.Debug("failed to close audio sink", "error", err)
		}
	}
	return p.pc.Close()
}

func (p *Peer) handleState(s pion.PeerConnectionState) {
	slog.Debug("peer connection state changed", "state", s.String())
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn == nil {
		return
	}
	fn(peerState(s))
}

func peerState(s pion.PeerConnectionState) voice.PeerState {
	switch s {
	case pion.PeerConnectionStateConnected:
		return voice.PeerStateConnected
	case pion.PeerConnectionStateDisconnected:
		return voice.PeerStateDisconnected
	case pion.PeerConnectionStateFailed:
		return voice.PeerStateFailed
	case pion.PeerConnectionStateClosed:
		return voice.PeerStateClosed
	default:
		return voice.PeerStateConnecting
	}
}

func (p *Peer) handleTrack(track *pion.TrackRemote, _ *pion.RTPReceiver) {
	if track.Kind() != pion.RTPCodecTypeAudio || p.sink == nil {
		return
	}
	w, err := oggwriter.NewWith(p.sink, opusClockRate, opusChannels)
	if err != nil {
		slog.Warn("failed to open audio sink", "error", err)
		return
	}
	p.mu.Lock()
	p.ogg = w
	p.mu.Unlock()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := w.WriteRTP(pkt); err != nil {
			slog.Debug("failed to write remote audio", "error", err)
			return
		}
	}
}

type dataChannel struct {
	dc *pion.DataChannel
}

func (d *dataChannel) IsOpen() bool {
	return d.dc.ReadyState() == pion.DataChannelStateOpen
}

func (d *dataChannel) SendText(text string) error {
	return d.dc.SendText(text)
}

func (d *dataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (d *dataChannel) Close() error {
	return d.dc.Close()
}
