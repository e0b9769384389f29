//go:build opus

package audio

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/foxseedlab/studentize/internal/audio"
	"github.com/hraban/opus"
)

type OpusMixer struct {
	mu       sync.Mutex
	decoders map[string]*opus.Decoder
	queues   map[string]*frameQueue
	closed   bool
}

func NewOpusMixer() audio.Mixer {
	return &OpusMixer{
		decoders: make(map[string]*opus.Decoder),
		queues:   make(map[string]*frameQueue),
	}
}

func (m *OpusMixer) WriteOpusPacket(userID string, opusData []byte) {
	if len(opusData) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	dec, ok := m.decoders[userID]
	if !ok {
		var err error
		dec, err = opus.NewDecoder(sampleRate, channels)
		if err != nil {
			slog.Warn("failed to create opus decoder", "error", err, "user_id", userID)
			return
		}
		m.decoders[userID] = dec
		m.queues[userID] = &frameQueue{}
	}
	pcm := make([]int16, samplesPerFrame)
	n, err := dec.Decode(opusData, pcm)
	if err != nil || n <= 0 {
		return
	}
	totalSamples := n * channels
	if totalSamples > samplesPerFrame {
		totalSamples = samplesPerFrame
	}
	m.queues[userID].push(pcm[:totalSamples:totalSamples])
}

func (m *OpusMixer) ReadMixedFrame(buf []byte) (audio.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !hasQueuedFrames(m.queues) {
		return audio.Frame{}, nil
	}
	mixed := make([]int16, samplesPerFrame)
	speakers := mixQueuedFrames(m.queues, mixed)
	sort.Strings(speakers)
	return audio.Frame{N: writeMixedPCM(buf, mixed), Speakers: speakers}, nil
}

func (m *OpusMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.decoders = nil
	m.queues = nil
}
