// Package text prepares generated prose for speech synthesis: unicode
// cleanup, line normalization, quote repair, per-line punctuation rules,
// and dialogue/narration splitting.
package text

import (
	"regexp"
	"strings"
)

var unicodeReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"’", "'",
	"‘", "'",
	"—", "-",
	"–", "-",
	"…", "...",
	"\u00a0", " ",
)

// NormalizeUnicode maps typographic quotes, dashes, ellipses and
// non-breaking spaces to their ASCII equivalents.
func NormalizeUnicode(s string) string {
	return unicodeReplacer.Replace(s)
}

// NormalizeLineBreaks drops empty lines and trims the rest.
func NormalizeLineBreaks(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// FixUnterminatedQuotes balances double quotes per line. A line with an odd
// quote count gets the missing quote prepended when it already ends with one,
// appended otherwise.
func FixUnterminatedQuotes(s string) string {
	if s == "" {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, `"`)%2 != 0 {
			if strings.HasSuffix(line, `"`) {
				line = `"` + line
			} else {
				line += `"`
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var (
	abbreviationRe    = regexp.MustCompile(`(?i)\b(?:Mr|Mrs|Ms|Dr|Prof|Sr|Jr|Inc|Ltd|Co|etc|vs|vol|no|pp)\.$`)
	headingRe         = regexp.MustCompile(`(?i)^(Chapter|Capítulo|Part|Parte)\s+\d+`)
	punctInQuotesRe   = regexp.MustCompile(`[.!?…]\s*['"]?"$`)
	quoteThenPunctRe  = regexp.MustCompile(`['"][.!?…]$`)
	attributionRe     = regexp.MustCompile(`(?i)",?\s+\w+\s+(said|asked|replied|whispered|shouted|exclaimed|muttered|declared|dijo|preguntó|respondió|susurró|gritó|exclamó|murmuró|declaró).*[.!?]$`)
	bareQuoteEndRe    = regexp.MustCompile(`[^.!?…]["']$`)
	addInsideQuoteRe  = regexp.MustCompile(`([^.!?…])(["'])$`)
	timeRe            = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(AM|PM|am|pm)?\b`)
	ratioRe           = regexp.MustCompile(`\b(\d+):(\d+)\b`)
	spacesRe          = regexp.MustCompile(`\s+`)
	punctOutsideRe    = regexp.MustCompile(`(["'])([.!?…])`)
	sentenceWordsList = []string{
		"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
		"el", "la", "los", "las", "un", "una", "y", "o", "pero", "en", "a", "de", "con", "por",
	}
)

// PreprocessForTTS applies per-line punctuation rules so every spoken line
// ends cleanly. Headings and bare lines get a period, dialogue keeps its
// punctuation inside the quotes, and colons are rewritten because the
// Orpheus voice format reserves them.
func PreprocessForTTS(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || shouldSkipPunctuation(line) {
			out = append(out, line)
			continue
		}

		line = resolveColonConflicts(line)
		line = movePunctuationInsideQuotes(line)

		switch {
		case endsWithPunctuatedDialogue(line):
			out = append(out, line)
		case isUnpunctuatedDialogue(line):
			out = append(out, addInsideQuoteRe.ReplaceAllString(line, "$1.$2"))
		case strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") ||
			strings.HasSuffix(line, "?") || strings.HasSuffix(line, ":") ||
			strings.HasSuffix(line, ";") || strings.HasSuffix(line, "…"):
			out = append(out, line)
		case isTitleOrHeading(line, i):
			out = append(out, line+".")
		case strings.HasSuffix(line, ","):
			out = append(out, line)
		default:
			out = append(out, line+".")
		}
	}
	return strings.Join(out, "\n")
}

// PreprocessFullText runs the whole chain: unicode normalization, line break
// normalization, quote repair, then the TTS punctuation pass.
func PreprocessFullText(s string) string {
	s = NormalizeUnicode(s)
	s = NormalizeLineBreaks(s)
	s = FixUnterminatedQuotes(s)
	return PreprocessForTTS(s)
}

func shouldSkipPunctuation(line string) bool {
	if len(strings.TrimSpace(line)) <= 2 {
		return true
	}
	return abbreviationRe.MatchString(line)
}

func isTitleOrHeading(line string, index int) bool {
	if index == 0 {
		return true
	}
	if headingRe.MatchString(line) {
		return true
	}
	if len(strings.Fields(line)) <= 6 {
		lower := strings.ToLower(line)
		for _, w := range sentenceWordsList {
			if strings.Contains(lower, w) {
				return false
			}
		}
		return true
	}
	return false
}

func endsWithPunctuatedDialogue(line string) bool {
	return punctInQuotesRe.MatchString(line) ||
		quoteThenPunctRe.MatchString(line) ||
		attributionRe.MatchString(line)
}

func isUnpunctuatedDialogue(line string) bool {
	return bareQuoteEndRe.MatchString(line)
}

// resolveColonConflicts rewrites colons: times become dotted ("3:30" to
// "3.30"), ratios are read out ("5:3" to "5 a 3"), everything else turns
// into a dash.
func resolveColonConflicts(line string) string {
	line = strings.TrimSpace(timeRe.ReplaceAllString(line, "$1.$2 $3"))
	line = ratioRe.ReplaceAllString(line, "$1 a $2")
	line = strings.ReplaceAll(line, ":", " -")
	return strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
}

func movePunctuationInsideQuotes(line string) string {
	return punctOutsideRe.ReplaceAllString(line, "$2$1")
}

// SegmentType tags a text segment for voice selection.
type SegmentType string

const (
	SegmentNarration SegmentType = "narration"
	SegmentDialogue  SegmentType = "dialogue"
)

// Segment is a run of text spoken with one voice.
type Segment struct {
	Text string
	Type SegmentType
}

var dialogueRe = regexp.MustCompile(`"[^"]+"`)

// SplitAndAnnotate splits a line into narration and quoted dialogue
// segments, in order.
func SplitAndAnnotate(line string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range dialogueRe.FindAllStringIndex(line, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: line[last:loc[0]], Type: SegmentNarration})
		}
		segments = append(segments, Segment{Text: line[loc[0]:loc[1]], Type: SegmentDialogue})
		last = loc[1]
	}
	if last < len(line) {
		segments = append(segments, Segment{Text: line[last:], Type: SegmentNarration})
	}
	return segments
}

const extendedPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~—–“”‘’…‚„‹›«»‰‱"

// IsOnlyPunctuation reports whether a line has no speakable content.
func IsOnlyPunctuation(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(extendedPunctuation, r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(stripped) == ""
}
