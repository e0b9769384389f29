//go:build !opus

package audio

import (
	"log/slog"

	"github.com/foxseedlab/studentize/internal/audio"
)

type noopMixer struct{}

// NewOpusMixer without the opus build tag returns a mixer that discards audio.
func NewOpusMixer() audio.Mixer {
	slog.Warn("built without opus tag; discord bot audio will not be transcribed")
	return &noopMixer{}
}

func (m *noopMixer) WriteOpusPacket(_ string, _ []byte) {}

func (m *noopMixer) ReadMixedFrame(_ []byte) (audio.Frame, error) {
	return audio.Frame{}, nil
}

func (m *noopMixer) Close() {}
