// Package agents implements the three generation roles: a planner that
// outlines chapters, two content generators writing competing drafts, and
// an evaluator judging them. Agents talk to their own LLM backends through
// the llm.Completer contract so each role can run on a different model.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/llm"
	"github.com/fablecast/fablecast/internal/models"
	"github.com/fablecast/fablecast/internal/parse"
)

const plannerTemperature = 0.7

// ErrEmptyTopic indicates a plan was requested without a topic.
var ErrEmptyTopic = errors.New("topic is empty")

// Planner produces a chapter outline for a topic.
type Planner struct {
	llm llm.Completer
}

// NewPlanner creates a planner on the given backend.
func NewPlanner(completer llm.Completer) *Planner {
	return &Planner{llm: completer}
}

// Plan asks the LLM for a chapter outline. A malformed response never fails
// the run: the parser repairs what it can, and anything below the size's
// minimum chapter count is replaced with a deterministic fallback plan.
// Errors are returned only for an empty topic or a failed LLM call.
func (p *Planner) Plan(ctx context.Context, topic, lang, size string) (*models.Plan, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	log.Info().Str("topic", topic).Str("language", lang).Str("size", size).Msg("Planning audiobook structure")

	system := language.GetSystemPrompt(lang, language.RolePlanner)
	user := language.GetPlanningPrompt(lang, topic, size)

	response, err := p.llm.Complete(ctx, system, user, plannerTemperature)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	cfg := language.GetSizeConfig(size)
	plan, repaired, err := parse.Plan(response)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Plan response unparseable, using fallback plan")
		plan = fallbackPlan(topic, lang, cfg)
	case repaired && len(plan.Chapters) < cfg.ChaptersMin:
		log.Warn().
			Int("recovered", len(plan.Chapters)).
			Int("min", cfg.ChaptersMin).
			Msg("Repaired plan below minimum chapter count, using fallback plan")
		plan = fallbackPlan(topic, lang, cfg)
	case repaired:
		log.Warn().Int("chapters", len(plan.Chapters)).Msg("Plan recovered from malformed response")
	}

	log.Info().Int("chapters", len(plan.Chapters)).Int("total_words", plan.TotalEstimatedLength).Msg("Plan ready")
	return plan, nil
}

// fallbackPlan builds a deterministic outline sized to the preset's minimum
// chapter count, used when the LLM output cannot be parsed.
func fallbackPlan(topic, lang string, cfg language.SizeConfig) *models.Plan {
	spanish := language.Normalize(lang) == language.Spanish

	n := cfg.ChaptersMin
	plan := &models.Plan{
		Title:                topic,
		TotalEstimatedLength: n * cfg.WordsPerChapter,
	}
	for i := 1; i <= n; i++ {
		var title string
		var topics []string
		switch {
		case i == 1 && spanish:
			title = "Introducción"
			topics = []string{"Introducción al tema", "Contexto general"}
		case i == 1:
			title = "Introduction"
			topics = []string{"Introduction to the topic", "General context"}
		case i == n && spanish:
			title = "Conclusión"
			topics = []string{"Síntesis", "Aplicación práctica"}
		case i == n:
			title = "Conclusion"
			topics = []string{"Synthesis", "Practical application"}
		case spanish:
			title = fmt.Sprintf("Desarrollo del tema: parte %d", i-1)
			topics = []string{"Conceptos clave", "Ejemplos prácticos"}
		default:
			title = fmt.Sprintf("Exploring the topic: part %d", i-1)
			topics = []string{"Key concepts", "Practical examples"}
		}
		plan.Chapters = append(plan.Chapters, models.ChapterSpec{
			Number:          i,
			Title:           title,
			Topics:          topics,
			EstimatedLength: cfg.WordsPerChapter,
		})
	}
	return plan
}
