package microphone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/foxseedlab/studentize/internal/voice"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const sampleRate = 48000

// silentFrame is a single 20ms Opus packet that decodes to silence.
var silentFrame = []byte{0xf8, 0xff, 0xfe}

// FFmpeg captures the default input device through an ffmpeg child process
// that encodes to Ogg/Opus with one packet per page.
type FFmpeg struct {
	device string
	goos   string
}

func NewFFmpeg(device string) *FFmpeg {
	return &FFmpeg{device: device, goos: runtime.GOOS}
}

func (f *FFmpeg) Acquire(ctx context.Context) (voice.AudioCapture, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for microphone capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := captureArgs(f.goos, f.device)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	stop := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}

	type opened struct {
		ogg *oggreader.OggReader
		err error
	}
	ready := make(chan opened, 1)
	go func() {
		ogg, _, err := oggreader.NewWith(stdout)
		ready <- opened{ogg: ogg, err: err}
	}()
	select {
	case <-ctx.Done():
		stop()
		return nil, ctx.Err()
	case o := <-ready:
		if o.err != nil {
			stop()
			return nil, fmt.Errorf("read ogg header from ffmpeg: %w", o.err)
		}
		return newCapture(oggFrames(o.ogg), stop), nil
	}
}

func captureArgs(goos, device string) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		input = []string{"-f", "avfoundation", "-i", device}
	case "linux":
		if device == "" {
			device = "default"
		}
		input = []string{"-f", "pulse", "-i", device}
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-c:a", "libopus",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", "2",
		"-page_duration", "20000",
		"-f", "ogg", "-",
	)
	return args, nil
}

type frameSource func() ([]byte, time.Duration, error)

// oggFrames yields one Opus packet per page, timing each by the granule delta.
func oggFrames(ogg *oggreader.OggReader) frameSource {
	var lastGranule uint64
	return func() ([]byte, time.Duration, error) {
		for {
			page, header, err := ogg.ParseNextPage()
			if err != nil {
				return nil, 0, err
			}
			if bytes.HasPrefix(page, []byte("OpusTags")) {
				continue
			}
			samples := header.GranulePosition - lastGranule
			lastGranule = header.GranulePosition
			return page, time.Duration(samples) * time.Second / sampleRate, nil
		}
	}
}

type capture struct {
	next frameSource
	stop func()

	mu       sync.Mutex
	disabled bool
	closed   bool
}

func newCapture(next frameSource, stop func()) *capture {
	return &capture{next: next, stop: stop}
}

// ReadFrame keeps draining the device while disabled and substitutes silence.
func (c *capture) ReadFrame() ([]byte, time.Duration, error) {
	frame, d, err := c.next()
	if err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	disabled := c.disabled
	c.mu.Unlock()
	if disabled {
		return silentFrame, d, nil
	}
	return frame, d, nil
}

func (c *capture) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = !enabled
}

func (c *capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	if c.stop != nil {
		c.stop()
	}
	return nil
}
