package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fablecast/fablecast/internal/models"
)

type fakePlanner struct {
	plan *models.Plan
	err  error
}

func (f *fakePlanner) Plan(context.Context, string, string, string) (*models.Plan, error) {
	return f.plan, f.err
}

type fakeGenerator struct {
	id        string
	calls     int
	feedbacks []*models.FeedbackEntry
	err       error
}

func (f *fakeGenerator) ID() string { return f.id }

func (f *fakeGenerator) Generate(_ context.Context, plan *models.Plan, _, _ string, feedback *models.FeedbackEntry) ([]models.Chapter, error) {
	f.calls++
	f.feedbacks = append(f.feedbacks, feedback)
	if f.err != nil {
		return nil, f.err
	}
	chapters := make([]models.Chapter, 0, len(plan.Chapters))
	for _, spec := range plan.Chapters {
		content := f.id + " draft of " + spec.Title
		chapters = append(chapters, models.Chapter{
			Number:    spec.Number,
			Title:     spec.Title,
			Content:   content,
			WordCount: len(strings.Fields(content)),
		})
	}
	return chapters, nil
}

// fakeEvaluator returns scripted scores, one per pass, repeating the last.
type fakeEvaluator struct {
	scores []int
	calls  int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, v1, v2 []models.Chapter, _ string, threshold, iterationCount, maxIterations int) (*models.Evaluation, error) {
	i := f.calls
	if i >= len(f.scores) {
		i = len(f.scores) - 1
	}
	f.calls++
	score := f.scores[i]

	decision := models.DecisionImprove
	if score >= threshold {
		decision = models.DecisionAccept
	}
	return &models.Evaluation{
		OverallScore:            score,
		Decision:                decision,
		ImprovementInstructions: "tighten the prose",
		ScoresByChapter:         []models.ChapterScore{{Chapter: 1, Score: score, Feedback: "chapter one feedback"}},
	}, nil
}

type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) OnEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recordingObserver) byType(t string) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func shortPlan() *models.Plan {
	return &models.Plan{
		Chapters: []models.ChapterSpec{
			{Number: 1, Title: "Beginnings", Topics: []string{"context"}, EstimatedLength: 1200},
			{Number: 2, Title: "Middles", Topics: []string{"depth"}, EstimatedLength: 1200},
			{Number: 3, Title: "Endings", Topics: []string{"synthesis"}, EstimatedLength: 1200},
		},
		TotalEstimatedLength: 3600,
	}
}

func newTestWorkflow(eval *fakeEvaluator, obs Observer) (*Workflow, *fakeGenerator, *fakeGenerator) {
	g1 := &fakeGenerator{id: "generator1"}
	g2 := &fakeGenerator{id: "generator2"}
	w := New(&fakePlanner{plan: shortPlan()}, g1, g2, eval, obs)
	return w, g1, g2
}

func TestRunAcceptsFirstPassWithZeroThreshold(t *testing.T) {
	obs := &recordingObserver{}
	w, g1, g2 := newTestWorkflow(&fakeEvaluator{scores: []int{0}}, obs)

	state, err := w.Run(context.Background(), Request{
		Topic: "Test Topic", Language: "en", Size: "short",
		QualityThreshold: 0, MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Accepted() {
		t.Fatal("run not accepted")
	}
	if n := len(state.FinalContent); n < 3 || n > 4 {
		t.Errorf("final chapters = %d, want 3-4 for short", n)
	}
	if g1.calls != 1 || g2.calls != 1 {
		t.Errorf("generator calls = %d/%d, want 1/1", g1.calls, g2.calls)
	}
	if state.IterationCount != 1 {
		t.Errorf("iterations = %d, want 1", state.IterationCount)
	}
	if state.FormattedText == "" || !strings.Contains(state.FormattedText, "Chapter 1") {
		t.Errorf("formatted text missing: %q", state.FormattedText)
	}

	outcomes := obs.byType(EventOutcome)
	if len(outcomes) != 1 || outcomes[0].Decision != models.DecisionAccept {
		t.Errorf("outcome events = %+v", outcomes)
	}
}

func TestRunImproveLoopFeedsBackEvaluation(t *testing.T) {
	w, g1, g2 := newTestWorkflow(&fakeEvaluator{scores: []int{60, 85}}, nil)

	state, err := w.Run(context.Background(), Request{
		Topic: "jazz", Language: "en", Size: "short",
		QualityThreshold: 70, MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Accepted() {
		t.Fatal("run not accepted")
	}
	if state.IterationCount != 2 {
		t.Errorf("iterations = %d, want 2", state.IterationCount)
	}
	if g1.calls != 2 || g2.calls != 2 {
		t.Errorf("generator calls = %d/%d, want 2/2", g1.calls, g2.calls)
	}

	// First pass runs with no feedback, second sees iteration 0's entry.
	if g1.feedbacks[0] != nil {
		t.Error("first pass should have no feedback")
	}
	if g1.feedbacks[1] == nil || g1.feedbacks[1].OverallScore != 60 {
		t.Errorf("second pass feedback = %+v, want score 60 entry", g1.feedbacks[1])
	}
	if len(state.FeedbackHistory) != 2 {
		t.Errorf("feedback history = %d entries, want 2", len(state.FeedbackHistory))
	}
	if state.FeedbackHistory[0].Iteration != 0 || state.FeedbackHistory[1].Iteration != 1 {
		t.Errorf("feedback iterations = %+v", state.FeedbackHistory)
	}
}

func TestRunIterationBoundForcesAccept(t *testing.T) {
	// Evaluator always scores below threshold but above the rewrite band:
	// with MaxIterations=1 the single improve verdict is forgiven.
	eval := &fakeEvaluator{scores: []int{50}}
	w, g1, _ := newTestWorkflow(eval, nil)

	state, err := w.Run(context.Background(), Request{
		Topic: "jazz", Language: "en", Size: "short",
		QualityThreshold: 70, MaxIterations: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.calls != 1 {
		t.Errorf("evaluator passes = %d, want exactly 1", eval.calls)
	}
	if g1.calls != 1 {
		t.Errorf("generator passes = %d, want 1", g1.calls)
	}
	if !state.Accepted() {
		t.Error("exhausted near-miss should be accepted")
	}
	if state.Evaluation.OverallScore != 50 {
		t.Errorf("stored score = %d, want the sub-threshold 50 visible to callers", state.Evaluation.OverallScore)
	}
}

func TestRunRejectsRewriteBandAtExhaustion(t *testing.T) {
	obs := &recordingObserver{}
	w, _, _ := newTestWorkflow(&fakeEvaluator{scores: []int{30}}, obs)

	state, err := w.Run(context.Background(), Request{
		Topic: "jazz", Language: "es", Size: "short",
		QualityThreshold: 70, MaxIterations: 1,
	})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if state.Accepted() {
		t.Error("rewrite-band content accepted")
	}
	if state.FinalContent != nil {
		t.Error("final content set on rejected run")
	}
	if state.Evaluation == nil || state.Evaluation.OverallScore != 30 {
		t.Error("last evaluation not preserved for the caller")
	}

	outcomes := obs.byType(EventOutcome)
	if len(outcomes) != 1 || outcomes[0].Decision != models.DecisionReject {
		t.Errorf("outcome events = %+v", outcomes)
	}
}

func TestRunPlannerErrorAborts(t *testing.T) {
	w := New(&fakePlanner{err: errors.New("llm down")}, &fakeGenerator{id: "generator1"}, &fakeGenerator{id: "generator2"}, &fakeEvaluator{scores: []int{80}}, nil)
	if _, err := w.Run(context.Background(), Request{Topic: "jazz", Language: "en", Size: "short", QualityThreshold: 70, MaxIterations: 3}); err == nil {
		t.Error("expected error, got nil")
	} else if !strings.Contains(err.Error(), "planner") {
		t.Errorf("error %q missing stage context", err)
	}
}

func TestRunGeneratorErrorAborts(t *testing.T) {
	g1 := &fakeGenerator{id: "generator1", err: errors.New("timeout")}
	w := New(&fakePlanner{plan: shortPlan()}, g1, &fakeGenerator{id: "generator2"}, &fakeEvaluator{scores: []int{80}}, nil)
	if _, err := w.Run(context.Background(), Request{Topic: "jazz", Language: "en", Size: "short", QualityThreshold: 70, MaxIterations: 3}); err == nil {
		t.Error("expected error, got nil")
	} else if !strings.Contains(err.Error(), "generator1") {
		t.Errorf("error %q missing stage context", err)
	}
}
