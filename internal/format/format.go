// Package format turns the winning chapters into TTS-ready audiobook text.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/models"
)

// maxLineLength is the wrap target for TTS input lines. Sentences are packed
// up to this length; a single longer sentence is kept whole, never cut.
const maxLineLength = 100

// MergeBestContent picks the better draft per chapter number. A chapter
// present in only one variant passes through; when both variants have it,
// the longer content wins. The evaluation's per-chapter score is shared by
// both drafts of a chapter, so it can rank chapters but never break the tie
// between variants; length stands in as the completeness proxy.
func MergeBestContent(v1, v2 []models.Chapter, _ *models.Evaluation) []models.Chapter {
	if len(v1) == 0 {
		return v2
	}
	if len(v2) == 0 {
		return v1
	}

	byNum1 := make(map[int]models.Chapter, len(v1))
	for _, ch := range v1 {
		byNum1[ch.Number] = ch
	}
	byNum2 := make(map[int]models.Chapter, len(v2))
	for _, ch := range v2 {
		byNum2[ch.Number] = ch
	}

	nums := make(map[int]struct{}, len(byNum1)+len(byNum2))
	for n := range byNum1 {
		nums[n] = struct{}{}
	}
	for n := range byNum2 {
		nums[n] = struct{}{}
	}

	merged := make([]models.Chapter, 0, len(nums))
	for n := range nums {
		ch1, ok1 := byNum1[n]
		ch2, ok2 := byNum2[n]
		switch {
		case !ok1:
			merged = append(merged, ch2)
		case !ok2:
			merged = append(merged, ch1)
		case len(ch1.Content) > len(ch2.Content):
			merged = append(merged, ch1)
		default:
			merged = append(merged, ch2)
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Number < merged[j].Number })
	return merged
}

// AudiobookText serializes chapters to the plain-text audiobook format:
// a localized chapter heading, the title, then the body re-wrapped into
// short sentence-packed lines with blank lines between paragraphs.
func AudiobookText(chapters []models.Chapter, lang string) string {
	sorted := make([]models.Chapter, len(chapters))
	copy(sorted, chapters)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	var lines []string
	for _, ch := range sorted {
		lines = append(lines, language.ChapterHeading(lang, ch.Number))
		if ch.Title != "" {
			lines = append(lines, ch.Title)
		}
		lines = append(lines, "")

		for _, paragraph := range strings.Split(ch.Content, "\n\n") {
			if strings.TrimSpace(paragraph) == "" {
				continue
			}
			lines = append(lines, splitParagraphForTTS(paragraph)...)
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

// WriteAudiobookText writes the serialized text to path, creating parent
// directories as needed, and returns the path.
func WriteAudiobookText(chapters []models.Chapter, lang, path string) (string, error) {
	text := AudiobookText(chapters, lang)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write audiobook text: %w", err)
	}

	log.Info().Str("path", path).Int("chapters", len(chapters)).Msg("Audiobook text written")
	return path, nil
}

// splitParagraphForTTS packs sentences into lines of at most maxLineLength
// characters. Sentences missing terminal punctuation get a period.
func splitParagraphForTTS(text string) []string {
	var lines []string
	var current string

	for _, sentence := range strings.Split(text, ". ") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !strings.ContainsAny(sentence[len(sentence)-1:], ".!?") {
			sentence += "."
		}

		if current != "" && len(current)+len(sentence)+1 > maxLineLength {
			lines = append(lines, current)
			current = sentence
		} else if current != "" {
			current += " " + sentence
		} else {
			current = sentence
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
