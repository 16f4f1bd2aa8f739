// Package workflow runs the bounded plan/generate/evaluate/improve loop
// that turns a topic into accepted audiobook chapters.
//
// Node order: planner → generator1 → generator2 → evaluator, then a branch
// on the evaluator verdict: improve loops back to the generators with the
// new feedback, accept proceeds to merge and format, reject terminates with
// no final content. The iteration count advances once per evaluator pass,
// so the loop is bounded by MaxIterations regardless of how often the
// generators run.
package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/agents"
	"github.com/fablecast/fablecast/internal/format"
	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/models"
)

// Stage names, emitted with events and error context.
const (
	StagePlanner    = "planner"
	StageGenerator1 = "generator1"
	StageGenerator2 = "generator2"
	StageEvaluator  = "evaluator"
	StageMerge      = "merge"
	StageFormat     = "format"
)

// Event types.
const (
	EventStageStart    = "stage_start"
	EventStageComplete = "stage_complete"
	EventEvaluation    = "evaluation"
	EventOutcome       = "outcome"
)

// Event is a progress notification from a running workflow.
type Event struct {
	Type      string          `json:"type"`
	Stage     string          `json:"stage,omitempty"`
	Message   string          `json:"message,omitempty"`
	Iteration int             `json:"iteration"`
	Score     int             `json:"score,omitempty"`
	Decision  models.Decision `json:"decision,omitempty"`
}

// Observer receives workflow events. Implementations must not block; the
// workflow calls them inline between stages.
type Observer interface {
	OnEvent(Event)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) OnEvent(Event) {}

// Planner produces a chapter outline.
type Planner interface {
	Plan(ctx context.Context, topic, lang, size string) (*models.Plan, error)
}

// Generator writes chapter drafts from a plan.
type Generator interface {
	ID() string
	Generate(ctx context.Context, plan *models.Plan, topic, lang string, feedback *models.FeedbackEntry) ([]models.Chapter, error)
}

// Evaluator judges both drafts.
type Evaluator interface {
	Evaluate(ctx context.Context, v1, v2 []models.Chapter, lang string, threshold, iterationCount, maxIterations int) (*models.Evaluation, error)
}

// Request describes one generation run.
type Request struct {
	Topic            string
	Language         string
	Size             string
	QualityThreshold int
	MaxIterations    int

	// OutputPath, when set, is where the formatted audiobook text is
	// written during the format stage.
	OutputPath string
}

// GenerationState is the single-owner state threaded through a run. Fields
// are role-partitioned: each stage writes only its own keys.
type GenerationState struct {
	Topic            string
	Language         string
	Size             string
	QualityThreshold int
	MaxIterations    int

	Plan            *models.Plan
	ContentV1       []models.Chapter
	ContentV2       []models.Chapter
	Evaluation      *models.Evaluation
	FeedbackHistory []models.FeedbackEntry
	IterationCount  int

	// FinalContent is set only by the merge stage. Nil after a rejected
	// run; its presence is how callers distinguish success.
	FinalContent  []models.Chapter
	FormattedText string
	Metadata      map[string]any
}

// Accepted reports whether the run produced final content.
func (s *GenerationState) Accepted() bool { return s.FinalContent != nil }

// Workflow wires the agents into the state machine.
type Workflow struct {
	planner   Planner
	gen1      Generator
	gen2      Generator
	evaluator Evaluator
	observer  Observer
}

// New creates a workflow. A nil observer is replaced with NopObserver.
func New(planner Planner, gen1, gen2 Generator, evaluator Evaluator, observer Observer) *Workflow {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Workflow{planner: planner, gen1: gen1, gen2: gen2, evaluator: evaluator, observer: observer}
}

// Run executes the full loop. It returns the final state along with any
// fatal error; a rejected run is not an error, it is a state with no
// FinalContent and the last evaluation explaining why.
func (w *Workflow) Run(ctx context.Context, req Request) (*GenerationState, error) {
	state := &GenerationState{
		Topic:            req.Topic,
		Language:         language.Normalize(req.Language),
		Size:             req.Size,
		QualityThreshold: req.QualityThreshold,
		MaxIterations:    req.MaxIterations,
		Metadata:         map[string]any{},
	}

	w.emit(Event{Type: EventStageStart, Stage: StagePlanner, Message: "Planning audiobook structure"})
	plan, err := w.planner.Plan(ctx, state.Topic, state.Language, state.Size)
	if err != nil {
		return state, fmt.Errorf("%s: %w", StagePlanner, err)
	}
	state.Plan = plan
	w.emit(Event{Type: EventStageComplete, Stage: StagePlanner,
		Message: fmt.Sprintf("Plan ready with %d chapters", len(plan.Chapters))})

	for {
		var feedback *models.FeedbackEntry
		if state.IterationCount > 0 && len(state.FeedbackHistory) > 0 {
			feedback = &state.FeedbackHistory[len(state.FeedbackHistory)-1]
		}

		if err := w.runGenerator(ctx, state, w.gen1, StageGenerator1, feedback, &state.ContentV1); err != nil {
			return state, err
		}
		if err := w.runGenerator(ctx, state, w.gen2, StageGenerator2, feedback, &state.ContentV2); err != nil {
			return state, err
		}

		w.emit(Event{Type: EventStageStart, Stage: StageEvaluator, Iteration: state.IterationCount,
			Message: fmt.Sprintf("Evaluating drafts (iteration %d)", state.IterationCount+1)})
		eval, err := w.evaluator.Evaluate(ctx, state.ContentV1, state.ContentV2, state.Language,
			state.QualityThreshold, state.IterationCount, state.MaxIterations)
		if err != nil {
			return state, fmt.Errorf("%s: %w", StageEvaluator, err)
		}
		state.Evaluation = eval
		state.FeedbackHistory = append(state.FeedbackHistory, models.FeedbackEntry{
			Iteration:               state.IterationCount,
			OverallScore:            eval.OverallScore,
			Decision:                eval.Decision,
			ImprovementInstructions: eval.ImprovementInstructions,
			ScoresByChapter:         eval.ScoresByChapter,
		})
		state.IterationCount++

		// Re-derive with the advanced count: an improve verdict on the
		// final iteration is forgiven into accept (or reject for scores
		// in the rewrite band) so the loop always terminates.
		decision := agents.DeriveDecision(eval.OverallScore, state.QualityThreshold,
			state.IterationCount, state.MaxIterations)
		w.emit(Event{Type: EventEvaluation, Stage: StageEvaluator, Iteration: state.IterationCount,
			Score: eval.OverallScore, Decision: decision,
			Message: fmt.Sprintf("Score %d/100", eval.OverallScore)})

		switch decision {
		case models.DecisionImprove:
			log.Info().Int("iteration", state.IterationCount).Int("score", eval.OverallScore).
				Msg("Regenerating with feedback")
			continue
		case models.DecisionReject:
			w.emit(Event{Type: EventOutcome, Decision: models.DecisionReject,
				Iteration: state.IterationCount, Score: eval.OverallScore,
				Message: "Content rejected"})
			log.Warn().Int("score", eval.OverallScore).Msg("Run rejected by evaluator")
			return state, nil
		}
		break
	}

	w.emit(Event{Type: EventStageStart, Stage: StageMerge, Iteration: state.IterationCount,
		Message: "Merging best chapters"})
	state.FinalContent = format.MergeBestContent(state.ContentV1, state.ContentV2, state.Evaluation)
	w.emit(Event{Type: EventStageComplete, Stage: StageMerge, Iteration: state.IterationCount,
		Message: fmt.Sprintf("Merged %d chapters", len(state.FinalContent))})

	w.emit(Event{Type: EventStageStart, Stage: StageFormat, Iteration: state.IterationCount,
		Message: "Formatting audiobook text"})
	state.FormattedText = format.AudiobookText(state.FinalContent, state.Language)
	if req.OutputPath != "" {
		path, err := format.WriteAudiobookText(state.FinalContent, state.Language, req.OutputPath)
		if err != nil {
			return state, fmt.Errorf("%s: %w", StageFormat, err)
		}
		state.Metadata["formatted_output_path"] = path
	}
	w.emit(Event{Type: EventStageComplete, Stage: StageFormat, Iteration: state.IterationCount,
		Message: "Audiobook text ready"})

	w.emit(Event{Type: EventOutcome, Decision: models.DecisionAccept,
		Iteration: state.IterationCount, Score: state.Evaluation.OverallScore,
		Message: "Content accepted"})
	return state, nil
}

func (w *Workflow) runGenerator(ctx context.Context, state *GenerationState, gen Generator, stage string, feedback *models.FeedbackEntry, out *[]models.Chapter) error {
	w.emit(Event{Type: EventStageStart, Stage: stage, Iteration: state.IterationCount,
		Message: fmt.Sprintf("Generating content (iteration %d)", state.IterationCount+1)})
	chapters, err := gen.Generate(ctx, state.Plan, state.Topic, state.Language, feedback)
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	*out = chapters
	w.emit(Event{Type: EventStageComplete, Stage: stage, Iteration: state.IterationCount,
		Message: fmt.Sprintf("%d chapters drafted", len(chapters))})
	return nil
}

func (w *Workflow) emit(ev Event) {
	w.observer.OnEvent(ev)
}
