package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/studentize/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	sampleRateHertz = 48000
	channelCount    = 2
	globalLocation  = "global"
	defaultModel    = "long"
	phraseBoost     = 10
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
	// PhraseHints biases recognition toward advising vocabulary such as course
	// codes and program names.
	PhraseHints []string
}

// CloudSpeech streams advising-session audio to Cloud Speech-to-Text v2.
type CloudSpeech struct {
	cfg CloudSpeechConfig
	now func() time.Time
}

func NewCloudSpeech(cfg CloudSpeechConfig) *CloudSpeech {
	cfg.Location = strings.TrimSpace(cfg.Location)
	if cfg.Location == "" {
		cfg.Location = globalLocation
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	hints := cfg.PhraseHints[:0:0]
	for _, h := range cfg.PhraseHints {
		if h = strings.TrimSpace(h); h != "" {
			hints = append(hints, h)
		}
	}
	cfg.PhraseHints = hints
	return &CloudSpeech{cfg: cfg, now: time.Now}
}

func (c *CloudSpeech) recognizer() string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", c.cfg.ProjectID, c.cfg.Location)
}

func (c *CloudSpeech) dial(ctx context.Context) (*speech.Client, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(c.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if c.cfg.Location != globalLocation {
		opts = append(opts, option.WithEndpoint(c.cfg.Location+"-speech.googleapis.com:443"))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return client, nil
}

func (c *CloudSpeech) streamingConfig(language string) *speechpb.StreamingRecognizeRequest {
	rc := &speechpb.RecognitionConfig{
		Model:         c.cfg.Model,
		LanguageCodes: []string{language},
		DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
			ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
				Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
				SampleRateHertz:   sampleRateHertz,
				AudioChannelCount: channelCount,
			},
		},
		Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
	}
	if len(c.cfg.PhraseHints) > 0 {
		phrases := make([]*speechpb.PhraseSet_Phrase, 0, len(c.cfg.PhraseHints))
		for _, h := range c.cfg.PhraseHints {
			phrases = append(phrases, &speechpb.PhraseSet_Phrase{Value: h})
		}
		rc.Adaptation = &speechpb.SpeechAdaptation{
			PhraseSets: []*speechpb.SpeechAdaptation_AdaptationPhraseSet{{
				Value: &speechpb.SpeechAdaptation_AdaptationPhraseSet_InlinePhraseSet{
					InlinePhraseSet: &speechpb.PhraseSet{Phrases: phrases, Boost: phraseBoost},
				},
			}},
		}
	}
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: c.recognizer(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:            rc,
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	}
}

func (c *CloudSpeech) StartStreaming(ctx context.Context, sessionID, language string, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	if language == "" {
		language = c.cfg.Language
	}
	slog.Info("starting cloud speech stream", "session_id", sessionID, "location", c.cfg.Location, "language", language, "model", c.cfg.Model, "phrase_hints", len(c.cfg.PhraseHints))

	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	s := &stream{
		sessionID: sessionID,
		receiver:  receiver,
		now:       c.now,
		open: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			rpc, err := client.StreamingRecognize(ctx)
			if err != nil {
				return nil, err
			}
			if err := rpc.Send(c.streamingConfig(language)); err != nil {
				_ = rpc.CloseSend()
				return nil, err
			}
			return rpc, nil
		},
		release: client.Close,
	}
	if err := s.connectLocked(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// stream reopens the gRPC stream when Cloud Speech ends it at its duration cap.
// Offsets restart from zero on every reopen, so each generation keeps its own
// wall-clock origin.
type stream struct {
	sessionID string
	receiver  transcriber.ResultReceiver
	now       func() time.Time
	open      func() (speechpb.Speech_StreamingRecognizeClient, error)
	release   func() error

	mu     sync.Mutex
	closed bool
	rpc    speechpb.Speech_StreamingRecognizeClient
}

func (s *stream) connectLocked() error {
	rpc, err := s.open()
	if err != nil {
		return err
	}
	s.rpc = rpc
	go s.receive(rpc, s.now())
	return nil
}

func (s *stream) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: pcm},
	}
	err := s.rpc.Send(req)
	if err == nil || !isReconnectableStreamError(err) {
		return err
	}
	slog.Warn("speech stream hit its limit; reopening", "session_id", s.sessionID, "error", err)
	_ = s.rpc.CloseSend()
	if err := s.connectLocked(); err != nil {
		return fmt.Errorf("reopen speech stream: %w", err)
	}
	return s.rpc.Send(req)
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sendErr := s.rpc.CloseSend()
	return errors.Join(sendErr, s.release())
}

func (s *stream) receive(rpc speechpb.Speech_StreamingRecognizeClient, origin time.Time) {
	for {
		resp, err := rpc.Recv()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, context.Canceled), status.Code(err) == codes.Canceled:
				slog.Debug("speech receive loop stopped", "session_id", s.sessionID, "reason", err.Error())
			case isReconnectableStreamError(err):
				slog.Info("speech stream ended at its limit", "session_id", s.sessionID)
			default:
				s.receiver.OnError(err)
			}
			return
		}
		for _, r := range resp.GetResults() {
			if res, ok := toResult(r, origin); ok {
				s.receiver.OnResult(res)
			}
		}
	}
}

func toResult(r *speechpb.StreamingRecognitionResult, origin time.Time) (transcriber.Result, bool) {
	alts := r.GetAlternatives()
	if len(alts) == 0 {
		return transcriber.Result{}, false
	}
	res := transcriber.Result{
		Text:       alts[0].GetTranscript(),
		IsFinal:    r.GetIsFinal(),
		Confidence: alts[0].GetConfidence(),
	}
	if off := r.GetResultEndOffset(); off != nil {
		res.SpokenAt = origin.Add(off.AsDuration())
	}
	return res, true
}

func isReconnectableStreamError(err error) bool {
	if errors.Is(err, io.EOF) || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
