package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/llm"
	"github.com/fablecast/fablecast/internal/models"
)

const generatorTemperature = 0.8

// ErrNoPlan indicates content generation was requested before planning.
var ErrNoPlan = errors.New("no plan available")

// Generator writes full chapter content from a plan. Two instances run per
// workflow ("generator1" and "generator2"), each on its own backend, so the
// evaluator always has two drafts to compare.
type Generator struct {
	id  string
	llm llm.Completer
}

// NewGenerator creates a generator with the given identity.
func NewGenerator(id string, completer llm.Completer) *Generator {
	return &Generator{id: id, llm: completer}
}

// ID returns the generator identity ("generator1" or "generator2").
func (g *Generator) ID() string { return g.id }

// Generate writes content for every chapter in the plan. On improvement
// iterations the previous evaluation is spliced in: general instructions into
// the system prompt, per-chapter feedback into that chapter's user prompt.
// A failed LLM call aborts the whole pass.
func (g *Generator) Generate(ctx context.Context, plan *models.Plan, topic, lang string, feedback *models.FeedbackEntry) ([]models.Chapter, error) {
	if plan == nil || len(plan.Chapters) == 0 {
		return nil, ErrNoPlan
	}

	log.Info().Str("generator", g.id).Int("chapters", len(plan.Chapters)).Msg("Generating content")

	system := language.GetSystemPrompt(lang, language.RoleGenerator)
	if feedback != nil && feedback.ImprovementInstructions != "" {
		system += feedbackHeader(lang) + feedback.ImprovementInstructions
	}

	chapters := make([]models.Chapter, 0, len(plan.Chapters))
	totalWords := 0
	for _, spec := range plan.Chapters {
		user := chapterPrompt(lang, topic, spec)
		if fb := chapterFeedback(feedback, spec.Number); fb != "" {
			user += chapterFeedbackHeader(lang) + fb
		}

		content, err := g.llm.Complete(ctx, system, user, generatorTemperature)
		if err != nil {
			return nil, fmt.Errorf("%s chapter %d: %w", g.id, spec.Number, err)
		}

		ch := models.Chapter{
			Number:    spec.Number,
			Title:     spec.Title,
			Content:   content,
			WordCount: len(strings.Fields(content)),
		}
		totalWords += ch.WordCount
		chapters = append(chapters, ch)

		log.Debug().
			Str("generator", g.id).
			Int("chapter", spec.Number).
			Int("words", ch.WordCount).
			Msg("Chapter generated")
	}

	log.Info().Str("generator", g.id).Int("total_words", totalWords).Msg("Content generation complete")
	return chapters, nil
}

func chapterPrompt(lang, topic string, spec models.ChapterSpec) string {
	var topics strings.Builder
	for _, t := range spec.Topics {
		topics.WriteString("- ")
		topics.WriteString(t)
		topics.WriteString("\n")
	}

	if language.Normalize(lang) == language.Spanish {
		return fmt.Sprintf(`Escribe el contenido completo del Capítulo %d: %s

Tema principal del audiobook: %s

Temas a cubrir en este capítulo:
%s
Longitud estimada: aproximadamente %d palabras

El contenido debe ser:
- Claro y fácil de entender cuando se escucha
- Bien estructurado con párrafos cortos
- Incluir ejemplos prácticos cuando sea apropiado
- Apropiado para formato audiobook (evitar referencias visuales)
- Progresivo y lógico

Escribe el contenido completo del capítulo:`, spec.Number, spec.Title, topic, topics.String(), spec.EstimatedLength)
	}

	return fmt.Sprintf(`Write the complete content for Chapter %d: %s

Main topic of the audiobook: %s

Topics to cover in this chapter:
%s
Estimated length: approximately %d words

The content must be:
- Clear and easy to understand when listening
- Well-structured with short paragraphs
- Include practical examples when appropriate
- Appropriate for audiobook format (avoid visual references)
- Progressive and logical

Write the complete chapter content:`, spec.Number, spec.Title, topic, topics.String(), spec.EstimatedLength)
}

// chapterFeedback returns the evaluator feedback targeted at one chapter.
func chapterFeedback(feedback *models.FeedbackEntry, chapterNum int) string {
	if feedback == nil {
		return ""
	}
	for _, s := range feedback.ScoresByChapter {
		if s.Chapter == chapterNum {
			return s.Feedback
		}
	}
	return ""
}

func feedbackHeader(lang string) string {
	if language.Normalize(lang) == language.Spanish {
		return "\n\nFeedback de la iteración anterior:\n"
	}
	return "\n\nFeedback from the previous iteration:\n"
}

func chapterFeedbackHeader(lang string) string {
	if language.Normalize(lang) == language.Spanish {
		return "\n\nFeedback específico para este capítulo:\n"
	}
	return "\n\nSpecific feedback for this chapter:\n"
}
