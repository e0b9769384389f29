package voice

import (
	"encoding/json"
	"strings"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	eventAssistantDelta       = "response.audio_transcript.delta"
	eventAssistantOutputDelta = "response.output_audio_transcript.delta"
	eventAssistantDone        = "response.audio_transcript.done"
	eventAssistantOutputDone  = "response.output_audio_transcript.done"
	eventUserTranscription    = "conversation.item.input_audio_transcription.completed"
)

type Entry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
}

// Transcript accumulates the conversation in arrival order. Entries are never
// reordered or deduplicated.
type Transcript struct {
	mu            sync.Mutex
	entries       []Entry
	assistantOpen bool
}

// Apply folds one data channel message into the transcript and reports whether
// it changed. Unknown or malformed messages are ignored.
func (t *Transcript) Apply(raw []byte) bool {
	var ev serverEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case eventAssistantDelta, eventAssistantOutputDelta:
		if ev.Delta == "" {
			return false
		}
		last := len(t.entries) - 1
		if t.assistantOpen && last >= 0 && t.entries[last].Role == RoleAssistant {
			t.entries[last].Text += ev.Delta
			return true
		}
		t.entries = append(t.entries, Entry{Role: RoleAssistant, Text: ev.Delta})
		t.assistantOpen = true
		return true
	case eventAssistantDone, eventAssistantOutputDone:
		t.assistantOpen = false
		return false
	case eventUserTranscription:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			return false
		}
		t.entries = append(t.entries, Entry{Role: RoleUser, Text: text})
		return true
	default:
		return false
	}
}

func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.assistantOpen = false
}
