package voice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type mockChannel struct {
	mu     sync.Mutex
	open   bool
	sent   []string
	closed bool
	onMsg  func([]byte)
}

func (c *mockChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

func (c *mockChannel) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *mockChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = fn
}

func (c *mockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockChannel) deliver(raw string) {
	c.mu.Lock()
	fn := c.onMsg
	c.mu.Unlock()
	fn([]byte(raw))
}

type mockCapture struct {
	mu      sync.Mutex
	enabled bool
	closed  bool
}

func (c *mockCapture) ReadFrame() ([]byte, time.Duration, error) {
	return nil, 0, io.EOF
}

func (c *mockCapture) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *mockCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type mockMicrophone struct {
	mu       sync.Mutex
	err      error
	captures []*mockCapture
}

func (m *mockMicrophone) Acquire(context.Context) (AudioCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := &mockCapture{enabled: true}
	m.captures = append(m.captures, c)
	return c, nil
}

func (m *mockMicrophone) acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

type mockPeer struct {
	mu          sync.Mutex
	channel     *mockChannel
	attached    AudioCapture
	answer      string
	onState     func(PeerState)
	closed      bool
	channelOpen bool
}

func (p *mockPeer) AttachAudio(c AudioCapture) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = c
	return nil
}

func (p *mockPeer) CreateDataChannel(string) (DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = &mockChannel{open: p.channelOpen}
	return p.channel, nil
}

func (p *mockPeer) CreateOffer(context.Context) (string, error) {
	return "v=0\r\no=- offer\r\n", nil
}

func (p *mockPeer) SetAnswer(sdp string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = sdp
	return nil
}

func (p *mockPeer) OnStateChange(fn func(PeerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *mockPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type peerFactory struct {
	mu          sync.Mutex
	peers       []*mockPeer
	channelOpen bool
}

func (f *peerFactory) New() (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &mockPeer{channelOpen: f.channelOpen}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *peerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

type mockSignaler struct {
	mu     sync.Mutex
	err    error
	calls  int
	tokens []string

	// When gate is set, Exchange reports on entered and waits for gate to close.
	entered chan struct{}
	gate    chan struct{}
}

func (s *mockSignaler) Exchange(_ context.Context, _ string, token string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.tokens = append(s.tokens, token)
	gate, entered := s.gate, s.entered
	s.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return "v=0\r\no=- answer\r\n", nil
}

func (s *mockSignaler) hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entered = make(chan struct{}, 1)
	s.gate = make(chan struct{})
}

func newTestSession(t *testing.T, open bool) (*Session, *peerFactory, *mockMicrophone, *mockSignaler) {
	t.Helper()
	pf := &peerFactory{channelOpen: open}
	mic := &mockMicrophone{}
	sig := &mockSignaler{}
	s, err := NewSession(pf.New, mic, sig)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, pf, mic, sig
}

func TestConnectNegotiatesAndConnects(t *testing.T) {
	s, pf, mic, sig := newTestSession(t, true)

	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %s, want connected", s.State())
	}
	if mic.acquired() != 1 || sig.calls != 1 {
		t.Errorf("acquired = %d, signaling calls = %d", mic.acquired(), sig.calls)
	}
	if sig.tokens[0] != "tok" {
		t.Errorf("token = %q", sig.tokens[0])
	}
	peer := pf.peers[0]
	if peer.answer != "v=0\r\no=- answer\r\n" {
		t.Errorf("answer not applied: %q", peer.answer)
	}
	if peer.attached != mic.captures[0] {
		t.Error("microphone capture was not attached to the peer")
	}
}

func TestConcurrentConnectUsesOnePeer(t *testing.T) {
	s, pf, mic, sig := newTestSession(t, true)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Connect(context.Background(), "tok"); err != nil {
				t.Errorf("Connect: %v", err)
			}
		}()
	}
	wg.Wait()

	if s.State() != StateConnected {
		t.Fatalf("state = %s, want connected", s.State())
	}
	if pf.count() != 1 {
		t.Errorf("peers created = %d, want 1", pf.count())
	}
	if mic.acquired() != 1 {
		t.Errorf("microphone acquisitions = %d, want 1", mic.acquired())
	}
	if sig.calls != 1 {
		t.Errorf("signaling calls = %d, want 1", sig.calls)
	}
	for i, c := range mic.captures {
		if c.closed {
			t.Errorf("capture %d was released while connected", i)
		}
	}
}

func TestConnectDuringNegotiationIsNoop(t *testing.T) {
	s, pf, mic, sig := newTestSession(t, true)
	sig.hold()

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background(), "tok") }()
	<-sig.entered

	if s.State() != StateConnecting {
		t.Fatalf("state = %s, want connecting", s.State())
	}
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if mic.acquired() != 1 || pf.count() != 1 {
		t.Errorf("acquired = %d, peers = %d; the second Connect must not negotiate", mic.acquired(), pf.count())
	}

	close(sig.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("state = %s, want connected", s.State())
	}
	if sig.calls != 1 {
		t.Errorf("signaling calls = %d, want 1", sig.calls)
	}
}

func TestDisconnectDuringNegotiationCancelsConnect(t *testing.T) {
	s, pf, mic, sig := newTestSession(t, true)
	sig.hold()

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background(), "tok") }()
	<-sig.entered

	s.Disconnect()
	s.ToggleMute()
	if s.State() != StateIdle || s.IsMuted() {
		t.Fatalf("state = %s muted = %v, want idle and unmuted", s.State(), s.IsMuted())
	}

	close(sig.gate)
	if err := <-done; !errors.Is(err, ErrConnectionReplaced) {
		t.Fatalf("Connect err = %v, want ErrConnectionReplaced", err)
	}
	if s.State() != StateIdle || s.Err() != nil {
		t.Errorf("state = %s err = %v, want idle with no error", s.State(), s.Err())
	}
	if s.IsMuted() {
		t.Error("session reports muted after a cancelled connect")
	}
	for i, c := range mic.captures {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			t.Errorf("capture %d left open", i)
		}
	}
	if !pf.peers[0].closed || pf.count() != 2 {
		t.Errorf("first peer closed = %v, peers = %d; want a fresh peer", pf.peers[0].closed, pf.count())
	}

	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("state = %s after reconnect, want connected", s.State())
	}
}

func TestConnectFailureReleasesResources(t *testing.T) {
	s, pf, mic, sig := newTestSession(t, true)
	sig.err = &SignalingError{StatusCode: http.StatusUnauthorized, Body: "unauthorized"}

	err := s.Connect(context.Background(), "bad")
	var se *SignalingError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want SignalingError 401", err)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
	if s.Err() == nil {
		t.Error("Err() should report the failure")
	}
	if !mic.captures[0].closed {
		t.Error("microphone was not released")
	}
	if !pf.peers[0].closed || pf.count() != 2 {
		t.Errorf("old peer closed = %v, peers = %d; want a fresh peer", pf.peers[0].closed, pf.count())
	}

	sig.err = nil
	if err := s.Connect(context.Background(), "good"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if s.State() != StateConnected || s.Err() != nil {
		t.Errorf("state = %s err = %v after reconnect", s.State(), s.Err())
	}
}

func TestConnectMicrophoneDenied(t *testing.T) {
	s, _, mic, sig := newTestSession(t, true)
	mic.err = errors.New("permission denied")

	if err := s.Connect(context.Background(), "tok"); err == nil {
		t.Fatal("expected an error")
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
	if sig.calls != 0 {
		t.Errorf("signaling should not run without a microphone, calls = %d", sig.calls)
	}
}

func TestSendEventWithoutOpenChannelIsDropped(t *testing.T) {
	s, pf, _, _ := newTestSession(t, false)

	s.SendEvent(map[string]string{"type": "response.create"})
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}

	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.SendEvent(map[string]string{"type": "response.create"})
	if s.State() != StateConnected {
		t.Errorf("state = %s, want connected", s.State())
	}
	if sent := pf.peers[0].channel.sent; len(sent) != 0 {
		t.Errorf("sent on a closed channel: %v", sent)
	}
}

func TestSendEventWritesJSON(t *testing.T) {
	s, pf, _, _ := newTestSession(t, true)
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	s.SendEvent(map[string]string{"type": "response.create"})

	ch := pf.peers[0].channel
	if len(ch.sent) != 1 || ch.sent[0] != `{"type":"response.create"}` {
		t.Errorf("sent = %v", ch.sent)
	}
}

func TestToggleMute(t *testing.T) {
	s, _, mic, _ := newTestSession(t, true)

	s.ToggleMute()
	if s.IsMuted() {
		t.Fatal("mute toggled without a connection")
	}

	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.ToggleMute()
	if !s.IsMuted() || mic.captures[0].enabled {
		t.Errorf("muted = %v, capture enabled = %v", s.IsMuted(), mic.captures[0].enabled)
	}
	s.ToggleMute()
	if s.IsMuted() || !mic.captures[0].enabled {
		t.Errorf("muted = %v, capture enabled = %v", s.IsMuted(), mic.captures[0].enabled)
	}
}

func TestDisconnectThenToggleMute(t *testing.T) {
	s, pf, mic, _ := newTestSession(t, true)
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.ToggleMute()

	s.Disconnect()
	s.ToggleMute()

	if s.IsMuted() {
		t.Error("session reports muted after disconnect")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
	if !mic.captures[0].closed || !pf.peers[0].closed {
		t.Error("disconnect left the capture or peer open")
	}
	if pf.count() != 2 {
		t.Errorf("peers = %d, want a fresh peer after disconnect", pf.count())
	}
}

func TestDataChannelMessagesBuildTranscript(t *testing.T) {
	s, pf, _, _ := newTestSession(t, true)
	updates := 0
	s.OnUpdate(func() { updates++ })
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	before := updates

	ch := pf.peers[0].channel
	ch.deliver(`{"type":"response.audio_transcript.delta","delta":"Hel"}`)
	ch.deliver(`{"type":"response.audio_transcript.delta","delta":"lo"}`)
	ch.deliver(`{"type":"response.audio_transcript.done"}`)

	got := s.Transcript()
	if len(got) != 1 || got[0].Text != "Hello" {
		t.Errorf("transcript = %+v", got)
	}
	if updates-before != 2 {
		t.Errorf("updates = %d, want 2", updates-before)
	}
}

func TestPeerFailureMovesToFailed(t *testing.T) {
	s, pf, mic, _ := newTestSession(t, true)
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	pf.peers[0].onState(PeerStateFailed)

	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
	if !mic.captures[0].closed {
		t.Error("capture left open after peer failure")
	}
}

func TestStalePeerStateIsIgnored(t *testing.T) {
	s, pf, _, _ := newTestSession(t, true)
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	stale := pf.peers[0].onState
	s.Disconnect()
	if err := s.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	stale(PeerStateDisconnected)

	if s.State() != StateConnected {
		t.Errorf("state = %s, want connected", s.State())
	}
}

func TestHTTPSignaler(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/sdp")
		_, _ = w.Write([]byte("v=0 answer"))
	}))
	defer srv.Close()

	answer, err := NewHTTPSignaler(srv.URL+"/", "career").Exchange(context.Background(), "v=0 offer", "tok")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if answer != "v=0 answer" {
		t.Errorf("answer = %q", answer)
	}
	if gotPath != "/api/session/career" || gotAuth != "Bearer tok" || gotType != "application/sdp" || gotBody != "v=0 offer" {
		t.Errorf("path=%q auth=%q type=%q body=%q", gotPath, gotAuth, gotType, gotBody)
	}
}

func TestHTTPSignalerReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" {
			t.Errorf("path = %q", r.URL.Path)
		}
		http.Error(w, "unknown advisor", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPSignaler(srv.URL, "").Exchange(context.Background(), "v=0", "tok")
	var se *SignalingError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SignalingError", err)
	}
	if se.StatusCode != http.StatusNotFound || se.Body != "unknown advisor" {
		t.Errorf("got %+v", se)
	}
}
