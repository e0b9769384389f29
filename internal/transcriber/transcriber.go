package transcriber

import (
	"context"
	"time"
)

// StreamWriter accepts interleaved 48kHz stereo LINEAR16 PCM.
type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

type Result struct {
	Text       string
	IsFinal    bool
	Confidence float32
	// SpokenAt is when the utterance ended, derived from the recognizer's
	// offset. Zero when the backend does not report one.
	SpokenAt time.Time
}

type ResultReceiver interface {
	OnResult(result Result)
	OnError(err error)
}

type Transcriber interface {
	StartStreaming(ctx context.Context, sessionID, language string, receiver ResultReceiver) (StreamWriter, error)
}
