package tts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultVoiceMapEngines(t *testing.T) {
	m := DefaultVoiceMap()
	for _, engine := range []string{"kokoro", "orpheus"} {
		if _, ok := m[engine]; !ok {
			t.Errorf("engine %q missing from default map", engine)
		}
	}
}

func TestNarratorAndDialogue(t *testing.T) {
	m := DefaultVoiceMap()

	tests := []struct {
		engine       string
		gender       string
		wantNarrator string
		wantDialogue string
	}{
		{"kokoro", "male", "am_puck", "af_alloy+am_puck"},
		{"kokoro", "female", "af_heart", "af_sky"},
		{"Kokoro", "female", "af_heart", "af_sky"},
		{"orpheus", "male", "zac", "dan"},
		{"orpheus", "female", "tara", "leah"},
	}
	for _, tt := range tests {
		narrator, dialogue, err := m.NarratorAndDialogue(tt.engine, tt.gender)
		if err != nil {
			t.Errorf("%s/%s: unexpected error: %v", tt.engine, tt.gender, err)
			continue
		}
		if narrator != tt.wantNarrator || dialogue != tt.wantDialogue {
			t.Errorf("%s/%s: got %s/%s, want %s/%s",
				tt.engine, tt.gender, narrator, dialogue, tt.wantNarrator, tt.wantDialogue)
		}
	}

	if _, _, err := m.NarratorAndDialogue("espeak", "male"); err == nil {
		t.Error("unknown engine should error")
	}
}

func TestVoiceForScore(t *testing.T) {
	m := DefaultVoiceMap()

	if v, err := m.VoiceForScore("kokoro", "male", 10); err != nil || v != "af_bella" {
		t.Errorf("score 10 = %q, %v", v, err)
	}
	if v, err := m.VoiceForScore("orpheus", "female", 0); err != nil || v != "tara" {
		t.Errorf("score 0 = %q, %v", v, err)
	}
	// Out-of-range scores fall back to the narrator voice.
	if v, err := m.VoiceForScore("kokoro", "male", 42); err != nil || v != "am_puck" {
		t.Errorf("score 42 = %q, %v", v, err)
	}
}

func TestDialogueVoices(t *testing.T) {
	m := DefaultVoiceMap()

	voices, err := m.DialogueVoices("kokoro", "female")
	if err != nil {
		t.Fatal(err)
	}
	if len(voices) < 2 {
		t.Fatalf("palette = %v, want several voices", voices)
	}
	seen := map[string]bool{}
	for _, v := range voices {
		if v == "af_heart" {
			t.Errorf("palette %v includes the narrator voice", voices)
		}
		if seen[v] {
			t.Errorf("palette %v repeats %q", voices, v)
		}
		seen[v] = true
	}

	if _, err := m.DialogueVoices("espeak", "female"); err == nil {
		t.Error("unknown engine should error")
	}
}

func TestAvailableVoicesAndValidation(t *testing.T) {
	m := DefaultVoiceMap()

	voices, err := m.AvailableVoices("kokoro")
	if err != nil {
		t.Fatal(err)
	}
	if len(voices) == 0 {
		t.Fatal("no kokoro voices")
	}
	if !m.ValidVoice("kokoro", "af_heart") {
		t.Error("af_heart should validate for kokoro")
	}
	if m.ValidVoice("kokoro", "tara") {
		t.Error("orpheus voice validated for kokoro")
	}
	if _, err := m.AvailableVoices("espeak"); err == nil {
		t.Error("unknown engine should error")
	}
}

func TestLoadVoiceMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice_map.json")
	custom := `{"kokoro": {"male_narrator": "custom_voice", "male_dialogue": "d", "female_narrator": "n", "female_dialogue": "d2"}}`
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadVoiceMap(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["kokoro"].MaleNarrator != "custom_voice" {
		t.Errorf("custom map not loaded: %+v", m["kokoro"])
	}

	// Missing file falls back to the embedded default.
	m, err = LoadVoiceMap(filepath.Join(dir, "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["kokoro"].MaleNarrator != "am_puck" {
		t.Errorf("default map not used: %+v", m["kokoro"])
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadVoiceMap(path); err == nil {
		t.Error("expected parse error")
	}
}
