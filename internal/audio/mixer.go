package audio

// Frame describes one mixed 20ms PCM frame: N bytes written and the users heard in it.
type Frame struct {
	N        int
	Speakers []string
}

type Mixer interface {
	WriteOpusPacket(userID string, opus []byte)
	ReadMixedFrame(buf []byte) (Frame, error)
	Close()
}

type MixerFactory func() Mixer
