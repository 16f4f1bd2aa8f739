package tts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

//go:embed voice_map.json
var defaultVoiceMapJSON []byte

// EngineVoices holds the voice assignments for one TTS engine: the
// single-voice narrator/dialogue pairs per narrator gender, plus the
// score maps used for multi-character casting.
type EngineVoices struct {
	MaleNarrator   string            `json:"male_narrator"`
	MaleDialogue   string            `json:"male_dialogue"`
	FemaleNarrator string            `json:"female_narrator"`
	FemaleDialogue string            `json:"female_dialogue"`
	MaleScoreMap   map[string]string `json:"male_score_map"`
	FemaleScoreMap map[string]string `json:"female_score_map"`
}

// VoiceMap maps TTS engine names to their voice assignments.
type VoiceMap map[string]EngineVoices

// DefaultVoiceMap returns the embedded voice map covering the kokoro and
// orpheus engines.
func DefaultVoiceMap() VoiceMap {
	var m VoiceMap
	if err := json.Unmarshal(defaultVoiceMapJSON, &m); err != nil {
		panic(fmt.Sprintf("embedded voice map invalid: %v", err))
	}
	return m
}

// LoadVoiceMap reads a voice map from path, falling back to the embedded
// default when the file does not exist.
func LoadVoiceMap(path string) (VoiceMap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultVoiceMap(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice map: %w", err)
	}
	var m VoiceMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse voice map: %w", err)
	}
	return m, nil
}

func (m VoiceMap) engine(name string) (EngineVoices, error) {
	ev, ok := m[strings.ToLower(name)]
	if !ok {
		engines := make([]string, 0, len(m))
		for k := range m {
			engines = append(engines, k)
		}
		sort.Strings(engines)
		return EngineVoices{}, fmt.Errorf("engine %q not in voice map, available: %s", name, strings.Join(engines, ", "))
	}
	return ev, nil
}

// NarratorAndDialogue returns the single-voice narrator and dialogue voices
// for an engine and narrator gender. Any gender other than "male" selects
// the female voices.
func (m VoiceMap) NarratorAndDialogue(engineName, narratorGender string) (narrator, dialogue string, err error) {
	ev, err := m.engine(engineName)
	if err != nil {
		return "", "", err
	}
	if narratorGender == "male" {
		return ev.MaleNarrator, ev.MaleDialogue, nil
	}
	return ev.FemaleNarrator, ev.FemaleDialogue, nil
}

// VoiceForScore returns the voice for a character gender score (0-10).
// The narrator gender chooses which score map applies; an unknown score
// falls back to the narrator voice at score 0.
func (m VoiceMap) VoiceForScore(engineName, narratorGender string, score int) (string, error) {
	ev, err := m.engine(engineName)
	if err != nil {
		return "", err
	}
	scoreMap := ev.FemaleScoreMap
	if narratorGender == "male" {
		scoreMap = ev.MaleScoreMap
	}
	if voice, ok := scoreMap[strconv.Itoa(score)]; ok {
		return voice, nil
	}
	return scoreMap["0"], nil
}

// DialogueVoices returns the multi-voice dialogue palette for an engine and
// narrator gender: the distinct score-map voices in score order, with the
// narrator voice left out so speakers stay distinguishable from narration.
func (m VoiceMap) DialogueVoices(engineName, narratorGender string) ([]string, error) {
	narrator, _, err := m.NarratorAndDialogue(engineName, narratorGender)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{narrator: {}}
	var voices []string
	for score := 0; score <= 10; score++ {
		voice, err := m.VoiceForScore(engineName, narratorGender, score)
		if err != nil {
			return nil, err
		}
		if voice == "" {
			continue
		}
		if _, ok := seen[voice]; ok {
			continue
		}
		seen[voice] = struct{}{}
		voices = append(voices, voice)
	}
	return voices, nil
}

// AvailableVoices returns the distinct voices an engine offers, sorted.
func (m VoiceMap) AvailableVoices(engineName string) ([]string, error) {
	ev, err := m.engine(engineName)
	if err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	for _, v := range []string{ev.MaleNarrator, ev.MaleDialogue, ev.FemaleNarrator, ev.FemaleDialogue} {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	for _, scoreMap := range []map[string]string{ev.MaleScoreMap, ev.FemaleScoreMap} {
		for _, v := range scoreMap {
			if v != "" {
				set[v] = struct{}{}
			}
		}
	}

	voices := make([]string, 0, len(set))
	for v := range set {
		voices = append(voices, v)
	}
	sort.Strings(voices)
	return voices, nil
}

// ValidVoice reports whether a voice belongs to the engine.
func (m VoiceMap) ValidVoice(engineName, voice string) bool {
	voices, err := m.AvailableVoices(engineName)
	if err != nil {
		return false
	}
	for _, v := range voices {
		if v == voice {
			return true
		}
	}
	return false
}
