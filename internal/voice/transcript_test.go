package voice

import (
	"testing"
)

func TestTranscriptMergesAssistantDeltas(t *testing.T) {
	var tr Transcript
	tr.Apply([]byte(`{"type":"response.audio_transcript.delta","delta":"Hel"}`))
	tr.Apply([]byte(`{"type":"response.audio_transcript.delta","delta":"lo"}`))
	tr.Apply([]byte(`{"type":"response.audio_transcript.done"}`))

	got := tr.Entries()
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if got[0].Role != RoleAssistant || got[0].Text != "Hello" {
		t.Errorf("entry = %+v", got[0])
	}

	tr.Apply([]byte(`{"type":"response.output_audio_transcript.delta","delta":"Next"}`))
	got = tr.Entries()
	if len(got) != 2 {
		t.Fatalf("entries after done = %d, want 2", len(got))
	}
	if got[1].Text != "Next" {
		t.Errorf("second entry = %q", got[1].Text)
	}
}

func TestTranscriptUserEntryInterruptsAssistant(t *testing.T) {
	var tr Transcript
	tr.Apply([]byte(`{"type":"response.audio_transcript.delta","delta":"Let me"}`))
	if !tr.Apply([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"  wait  "}`)) {
		t.Fatal("user transcription should change the transcript")
	}
	tr.Apply([]byte(`{"type":"response.audio_transcript.delta","delta":" think"}`))

	want := []Entry{
		{Role: RoleAssistant, Text: "Let me"},
		{Role: RoleUser, Text: "wait"},
		{Role: RoleAssistant, Text: " think"},
	}
	got := tr.Entries()
	if len(got) != len(want) {
		t.Fatalf("entries = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTranscriptIgnoresNoise(t *testing.T) {
	var tr Transcript
	for _, raw := range []string{
		`not json`,
		`{"type":"session.created"}`,
		`{"type":"response.audio_transcript.delta","delta":""}`,
		`{"type":"conversation.item.input_audio_transcription.completed","transcript":"   "}`,
	} {
		if tr.Apply([]byte(raw)) {
			t.Errorf("Apply(%s) reported a change", raw)
		}
	}
	if n := len(tr.Entries()); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestTranscriptEntriesIsACopy(t *testing.T) {
	var tr Transcript
	tr.Apply([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hi"}`))
	got := tr.Entries()
	got[0].Text = "changed"
	if tr.Entries()[0].Text != "hi" {
		t.Error("Entries exposed internal state")
	}
	tr.Reset()
	if len(tr.Entries()) != 0 {
		t.Error("Reset left entries behind")
	}
}
