package audio

import "encoding/binary"

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000
	// About one second of backlog per speaker; older frames are dropped so the mix stays live.
	maxQueuedFrames = 50
)

type frameQueue struct {
	frames  [][]int16
	dropped int
}

func (q *frameQueue) push(frame []int16) {
	if len(q.frames) >= maxQueuedFrames {
		q.frames = q.frames[1:]
		q.dropped++
	}
	q.frames = append(q.frames, frame)
}

func (q *frameQueue) pop() ([]int16, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

func (q *frameQueue) hasFrame() bool {
	return len(q.frames) > 0
}

func hasQueuedFrames(queues map[string]*frameQueue) bool {
	for _, q := range queues {
		if q.hasFrame() {
			return true
		}
	}
	return false
}

// mixQueuedFrames sums one frame from every non-empty queue and returns whose audio was used.
func mixQueuedFrames(queues map[string]*frameQueue, mixed []int16) []string {
	var speakers []string
	for userID, q := range queues {
		frame, ok := q.pop()
		if !ok {
			continue
		}
		speakers = append(speakers, userID)
		for i := 0; i < len(frame) && i < len(mixed); i++ {
			mixed[i] = clampPCM(int32(mixed[i]) + int32(frame[i]))
		}
	}
	return speakers
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func writeMixedPCM(buf []byte, mixed []int16) int {
	toWrite := len(buf) / 2
	if toWrite > len(mixed) {
		toWrite = len(mixed)
	}
	for i := 0; i < toWrite; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(mixed[i]))
	}
	return toWrite * 2
}
