package audio

import (
	"encoding/binary"
	"testing"
)

func TestClampPCM(t *testing.T) {
	cases := map[int32]int16{
		0:      0,
		40000:  32767,
		-40000: -32768,
		-5:     -5,
	}
	for in, want := range cases {
		if got := clampPCM(in); got != want {
			t.Fatalf("clampPCM(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMixQueuedFrames_SumsAndReportsSpeakers(t *testing.T) {
	queues := map[string]*frameQueue{
		"alice": {},
		"bob":   {},
		"carol": {},
	}
	queues["alice"].push([]int16{100, 30000})
	queues["bob"].push([]int16{-50, 30000})

	mixed := make([]int16, 2)
	speakers := mixQueuedFrames(queues, mixed)
	if len(speakers) != 2 {
		t.Fatalf("expected 2 speakers, got %v", speakers)
	}
	if mixed[0] != 50 || mixed[1] != 32767 {
		t.Fatalf("unexpected mix: %v", mixed)
	}
	if hasQueuedFrames(queues) {
		t.Fatal("expected all queues to be drained")
	}
}

func TestFrameQueue_DropsOldestWhenFull(t *testing.T) {
	q := &frameQueue{}
	for i := 0; i < maxQueuedFrames+3; i++ {
		q.push([]int16{int16(i)})
	}
	if len(q.frames) != maxQueuedFrames || q.dropped != 3 {
		t.Fatalf("unexpected queue state len=%d dropped=%d", len(q.frames), q.dropped)
	}
	f, ok := q.pop()
	if !ok || f[0] != 3 {
		t.Fatalf("expected oldest remaining frame 3, got %v", f)
	}
}

func TestWriteMixedPCM_LittleEndian(t *testing.T) {
	buf := make([]byte, 4)
	n := writeMixedPCM(buf, []int16{1, -2, 3})
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	if int16(binary.LittleEndian.Uint16(buf[2:])) != -2 {
		t.Fatalf("unexpected second sample: %v", buf)
	}
}
