package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptySummary = errors.New("summarizer returned an empty summary")

// Summary is stored as JSON in sessions.summary.
type Summary struct {
	Overview    string   `json:"overview"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []string `json:"actionItems"`
	Topics      []string `json:"topics"`
}

type Request struct {
	SessionTitle string
	Transcript   string
	Previous     *Summary
}

type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Summary, error)
}

const SystemPrompt = `You summarize academic advising sessions between an advisor and a student.
Reply with a single JSON object with exactly these keys:
"overview" (string, 2-4 sentences), "keyPoints" (array of strings),
"actionItems" (array of strings, each starting with who owns it), "topics" (array of short strings).
When a previous summary is given, merge it with the new transcript: keep still-valid items,
update changed ones and drop duplicates. Do not invent facts that are not in the transcript.`

func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if req.SessionTitle != "" {
		fmt.Fprintf(&b, "Session: %s\n\n", req.SessionTitle)
	}
	if req.Previous != nil {
		prev, _ := json.Marshal(req.Previous)
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", prev)
	}
	b.WriteString("Transcript:\n")
	b.WriteString(req.Transcript)
	return b.String()
}

// ParseSummary accepts raw model output, tolerating a surrounding markdown code fence.
func ParseSummary(raw string) (*Summary, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, ErrEmptySummary
	}
	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	s.Overview = strings.TrimSpace(s.Overview)
	s.KeyPoints = compact(s.KeyPoints)
	s.ActionItems = compact(s.ActionItems)
	s.Topics = compact(s.Topics)
	if s.Overview == "" && len(s.KeyPoints) == 0 {
		return nil, ErrEmptySummary
	}
	return &s, nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out
}
