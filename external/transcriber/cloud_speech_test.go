package transcriber

import (
	"errors"
	"io"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestIsReconnectableStreamError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eof", err: io.EOF, want: true},
		{name: "wrapped eof text", err: errors.New("rpc error: unexpected EOF"), want: true},
		{name: "max duration abort", err: status.Error(codes.Aborted, "Exceeded max duration of 5 minutes"), want: true},
		{name: "idle abort", err: status.Error(codes.Aborted, "Stream timed out after receiving no more client requests."), want: true},
		{name: "other abort", err: status.Error(codes.Aborted, "something else"), want: false},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "no"), want: false},
	}
	for _, tc := range cases {
		if got := isReconnectableStreamError(tc.err); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewCloudSpeechDefaults(t *testing.T) {
	c := NewCloudSpeech(CloudSpeechConfig{ProjectID: "p", Language: "en-US", PhraseHints: []string{" CS 101 ", "", "capstone"}})
	if c.cfg.Location != globalLocation || c.cfg.Model != defaultModel {
		t.Fatalf("unexpected defaults location=%q model=%q", c.cfg.Location, c.cfg.Model)
	}
	if len(c.cfg.PhraseHints) != 2 || c.cfg.PhraseHints[0] != "CS 101" {
		t.Fatalf("phrase hints = %q", c.cfg.PhraseHints)
	}
	if got := c.recognizer(); got != "projects/p/locations/global/recognizers/_" {
		t.Fatalf("recognizer = %q", got)
	}
}

func TestStreamingConfigCarriesPhraseHints(t *testing.T) {
	c := NewCloudSpeech(CloudSpeechConfig{ProjectID: "p", Location: "us", Model: "chirp_3", PhraseHints: []string{"FAFSA"}})
	req := c.streamingConfig("en-US")

	rc := req.GetStreamingConfig().GetConfig()
	if rc.GetModel() != "chirp_3" || rc.GetLanguageCodes()[0] != "en-US" {
		t.Fatalf("config = %v", rc)
	}
	if rc.GetExplicitDecodingConfig().GetSampleRateHertz() != sampleRateHertz {
		t.Errorf("sample rate = %d", rc.GetExplicitDecodingConfig().GetSampleRateHertz())
	}
	sets := rc.GetAdaptation().GetPhraseSets()
	if len(sets) != 1 {
		t.Fatalf("phrase sets = %d, want 1", len(sets))
	}
	phrases := sets[0].GetInlinePhraseSet().GetPhrases()
	if len(phrases) != 1 || phrases[0].GetValue() != "FAFSA" {
		t.Errorf("phrases = %v", phrases)
	}

	if NewCloudSpeech(CloudSpeechConfig{ProjectID: "p"}).streamingConfig("en-US").GetStreamingConfig().GetConfig().GetAdaptation() != nil {
		t.Error("adaptation should be omitted without hints")
	}
}

func TestToResultAnchorsOffsetToStreamOrigin(t *testing.T) {
	origin := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	res, ok := toResult(&speechpb.StreamingRecognitionResult{
		Alternatives:    []*speechpb.SpeechRecognitionAlternative{{Transcript: "what electives fit", Confidence: 0.9}},
		IsFinal:         true,
		ResultEndOffset: durationpb.New(90 * time.Second),
	}, origin)
	if !ok {
		t.Fatal("expected a result")
	}
	if !res.IsFinal || res.Text != "what electives fit" || res.Confidence != 0.9 {
		t.Errorf("result = %+v", res)
	}
	if want := origin.Add(90 * time.Second); !res.SpokenAt.Equal(want) {
		t.Errorf("SpokenAt = %s, want %s", res.SpokenAt, want)
	}

	if _, ok := toResult(&speechpb.StreamingRecognitionResult{IsFinal: true}, origin); ok {
		t.Error("result without alternatives should be skipped")
	}
}
