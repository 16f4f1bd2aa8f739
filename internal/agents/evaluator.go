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
	"github.com/fablecast/fablecast/internal/parse"
)

const (
	evaluatorTemperature = 0.3

	// chapterPreviewRunes caps how much of each chapter goes into the
	// evaluation prompt.
	chapterPreviewRunes = 2000
)

// ErrNothingToEvaluate indicates both content variants are missing.
var ErrNothingToEvaluate = errors.New("no content to evaluate")

// Evaluator scores both generators' drafts against the audiobook rubric.
type Evaluator struct {
	llm llm.Completer
}

// NewEvaluator creates an evaluator on the given backend.
func NewEvaluator(completer llm.Completer) *Evaluator {
	return &Evaluator{llm: completer}
}

// Evaluate judges both drafts and derives the final verdict. The LLM's own
// decision field is advisory only; the verdict is recomputed from the score,
// threshold and iteration budget so the loop always terminates. A response
// that cannot be parsed yields a neutral improve verdict rather than an
// error, keeping the workflow moving.
func (e *Evaluator) Evaluate(ctx context.Context, v1, v2 []models.Chapter, lang string, threshold, iterationCount, maxIterations int) (*models.Evaluation, error) {
	if len(v1) == 0 && len(v2) == 0 {
		return nil, ErrNothingToEvaluate
	}

	log.Info().
		Int("v1_chapters", len(v1)).
		Int("v2_chapters", len(v2)).
		Int("iteration", iterationCount+1).
		Int("threshold", threshold).
		Msg("Evaluating generated content")

	system := language.GetSystemPrompt(lang, language.RoleEvaluator)
	user := buildEvaluationPrompt(v1, v2, lang)

	response, err := e.llm.Complete(ctx, system, user, evaluatorTemperature)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}

	eval, err := parse.Evaluation(response)
	if err != nil {
		log.Warn().Err(err).Msg("Evaluation response unparseable, using neutral evaluation")
		eval = neutralEvaluation()
	}

	eval.Decision = DeriveDecision(eval.OverallScore, threshold, iterationCount, maxIterations)

	log.Info().
		Int("score", eval.OverallScore).
		Str("decision", string(eval.Decision)).
		Msg("Evaluation complete")
	return eval, nil
}

// rejectScoreFloor is the rubric's "requires complete rewrite" band. Once
// iterations are exhausted a near-miss above this floor is accepted anyway;
// below it the run is rejected.
const rejectScoreFloor = 40

// DeriveDecision computes the verdict from the score and iteration budget.
// Pure function: accept at or above threshold; improve while below threshold
// with iterations left; once the budget is exhausted, forgive a near-miss
// (callers can still see the sub-threshold score) and reject only content in
// the rewrite band.
func DeriveDecision(score, threshold, iterationCount, maxIterations int) models.Decision {
	if score >= threshold {
		return models.DecisionAccept
	}
	if iterationCount < maxIterations {
		return models.DecisionImprove
	}
	if score >= rejectScoreFloor {
		return models.DecisionAccept
	}
	return models.DecisionReject
}

func buildEvaluationPrompt(v1, v2 []models.Chapter, lang string) string {
	var b strings.Builder

	if language.Normalize(lang) == language.Spanish {
		b.WriteString(`Evalúa la calidad del siguiente contenido generado para un audiobook.

Criterios de evaluación:
1. Claridad y comprensibilidad (0-25 puntos)
2. Estructura y organización (0-25 puntos)
3. Completitud del tema (0-25 puntos)
4. Apropiado para formato audiobook (0-15 puntos)
5. Calidad de escritura (0-10 puntos)

`)
	} else {
		b.WriteString(`Evaluate the quality of the following generated content for an audiobook.

Evaluation criteria:
1. Clarity and comprehensibility (0-25 points)
2. Structure and organization (0-25 points)
3. Topic completeness (0-25 points)
4. Appropriate for audiobook format (0-15 points)
5. Writing quality (0-10 points)

`)
	}

	writeVariant := func(header string, chapters []models.Chapter) {
		if len(chapters) == 0 {
			return
		}
		b.WriteString("\n=== " + header + " ===\n")
		for _, ch := range chapters {
			fmt.Fprintf(&b, "\n--- %s: %s ---\n", language.ChapterHeading(lang, ch.Number), ch.Title)
			b.WriteString(previewContent(ch.Content))
			b.WriteString("\n")
		}
	}
	if language.Normalize(lang) == language.Spanish {
		writeVariant("CONTENIDO DEL GENERADOR 1", v1)
		writeVariant("CONTENIDO DEL GENERADOR 2", v2)
	} else {
		writeVariant("CONTENT FROM GENERATOR 1", v1)
		writeVariant("CONTENT FROM GENERATOR 2", v2)
	}

	b.WriteString("\n\n")
	b.WriteString(language.GetEvaluationFormatPrompt(lang))
	return b.String()
}

// previewContent truncates a chapter for the prompt, rune-safe.
func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= chapterPreviewRunes {
		return content
	}
	return string(runes[:chapterPreviewRunes]) + "..."
}

// neutralEvaluation is the stand-in verdict when the evaluator's output
// cannot be parsed. The improve decision keeps the loop going instead of
// failing the run on one bad response.
func neutralEvaluation() *models.Evaluation {
	return &models.Evaluation{
		OverallScore:            50,
		ScoresByChapter:         []models.ChapterScore{},
		Strengths:               []string{"Contenido generado"},
		Weaknesses:              []string{"No se pudo evaluar completamente"},
		Suggestions:             []string{"Revisar manualmente"},
		Decision:                models.DecisionImprove,
		ImprovementInstructions: "Mejorar la estructura y claridad del contenido",
	}
}
