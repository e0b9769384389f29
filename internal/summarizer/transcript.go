package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/studentize/internal/repository"
)

const unknownSpeaker = "Speaker"

// FormatTranscript renders segments as "hh:mm:ss Speaker: text" lines, offset from the first segment.
func FormatTranscript(segments []repository.TranscriptSegment) string {
	if len(segments) == 0 {
		return ""
	}
	startedAt := segments[0].SpokenAt
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		content := strings.TrimSpace(seg.Content)
		if content == "" {
			continue
		}
		elapsed := seg.SpokenAt.Sub(startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" {
			speaker = unknownSpeaker
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", formatElapsedHMS(elapsed), speaker, content))
	}
	return strings.Join(lines, "\n")
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
