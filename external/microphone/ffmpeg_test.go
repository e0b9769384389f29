package microphone

import (
	"bytes"
	"io"
	"slices"
	"testing"
	"time"
)

func TestCaptureArgs(t *testing.T) {
	args, err := captureArgs("linux", "")
	if err != nil {
		t.Fatalf("captureArgs: %v", err)
	}
	if !slices.Contains(args, "pulse") || !slices.Contains(args, "default") {
		t.Errorf("linux args = %v", args)
	}
	if !slices.Contains(args, "libopus") || args[len(args)-1] != "-" {
		t.Errorf("args should encode opus to stdout: %v", args)
	}

	args, err = captureArgs("darwin", ":2")
	if err != nil {
		t.Fatalf("captureArgs: %v", err)
	}
	if !slices.Contains(args, "avfoundation") || !slices.Contains(args, ":2") {
		t.Errorf("darwin args = %v", args)
	}

	if _, err := captureArgs("windows", ""); err == nil {
		t.Error("expected an error for an unsupported platform")
	}
}

func TestCaptureSubstitutesSilenceWhenDisabled(t *testing.T) {
	frames := [][]byte{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	i := 0
	next := func() ([]byte, time.Duration, error) {
		if i == len(frames) {
			return nil, 0, io.EOF
		}
		f := frames[i]
		i++
		return f, 20 * time.Millisecond, nil
	}
	stopped := 0
	c := newCapture(next, func() { stopped++ })

	got, d, err := c.ReadFrame()
	if err != nil || !bytes.Equal(got, frames[0]) || d != 20*time.Millisecond {
		t.Fatalf("ReadFrame = %v, %v, %v", got, d, err)
	}

	c.SetEnabled(false)
	got, _, _ = c.ReadFrame()
	if !bytes.Equal(got, silentFrame) {
		t.Errorf("muted frame = %v, want silence", got)
	}

	c.SetEnabled(true)
	got, _, _ = c.ReadFrame()
	if !bytes.Equal(got, frames[2]) {
		t.Errorf("unmuted frame = %v", got)
	}

	if _, _, err := c.ReadFrame(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}

	_ = c.Close()
	_ = c.Close()
	if stopped != 1 {
		t.Errorf("stop called %d times, want 1", stopped)
	}
}
