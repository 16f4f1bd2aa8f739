package text

import (
	"regexp"
	"strings"
)

var (
	chapterHeadingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(Chapter|Capítulo)\s+([\w-]+|\d+)`),
		regexp.MustCompile(`(?i)^(Part|Parte)\s+([\w-]+|\d+)`),
		regexp.MustCompile(`(?i)^(Section|Sección)\s+([\w-]+|\d+)`),
		regexp.MustCompile(`(?i)^(Act|Acto)\s+([\w-]+|\d+)`),
	}
	romanNumeralRe = regexp.MustCompile(`^[IVXLCDM]+$`)
	digitsRe       = regexp.MustCompile(`^\d+$`)
	filenameSafeRe = regexp.MustCompile(`[^a-zA-Z0-9\-_./\s]`)
)

// IsChapterHeading reports whether a line reads like a chapter, part,
// section or act heading followed by an arabic or roman numeral.
func IsChapterHeading(line string) bool {
	line = strings.TrimSpace(line)
	for _, re := range chapterHeadingRes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		number := m[2]
		if digitsRe.MatchString(number) {
			return true
		}
		if romanNumeralRe.MatchString(strings.ToUpper(number)) {
			return true
		}
	}
	return false
}

// ChapterBlock is one detected chapter: its heading and the lines that
// belong to it.
type ChapterBlock struct {
	Title     string
	StartLine int
	Lines     []string
}

// DetectChapters splits text on chapter headings. Lines before the first
// heading go into an introductory block.
func DetectChapters(s string) []ChapterBlock {
	lines := strings.Split(s, "\n")
	var chapters []ChapterBlock
	current := ChapterBlock{Title: "Introducción"}

	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped != "" && IsChapterHeading(stripped) {
			if len(current.Lines) > 0 {
				chapters = append(chapters, current)
			}
			current = ChapterBlock{Title: stripped, StartLine: i, Lines: []string{stripped}}
			continue
		}
		current.Lines = append(current.Lines, line)
	}
	if len(current.Lines) > 0 {
		chapters = append(chapters, current)
	}
	return chapters
}

var filenameReplacer = strings.NewReplacer(
	"'", "", `"`, "", "/", " ", ".", " ",
	":", "", "?", "", `\`, "", "|", "",
	"*", "", "<", "", ">", "", "&", "and",
)

// SanitizeFilename strips characters that are unsafe in file names and
// collapses whitespace.
func SanitizeFilename(s string) string {
	s = filenameReplacer.Replace(s)
	s = filenameSafeRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// EstimateAudioMinutes estimates narration length at the given reading
// speed in words per minute.
func EstimateAudioMinutes(s string, wordsPerMinute int) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	return float64(len(strings.Fields(s))) / float64(wordsPerMinute)
}
