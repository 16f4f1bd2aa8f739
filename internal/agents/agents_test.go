package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fablecast/fablecast/internal/models"
)

// stubCompleter returns canned responses and records what it was asked.
type stubCompleter struct {
	responses []string
	err       error
	calls     int
	systems   []string
	users     []string
	temps     []float64
}

func (s *stubCompleter) Complete(_ context.Context, system, user string, temperature float64) (string, error) {
	s.calls++
	s.systems = append(s.systems, system)
	s.users = append(s.users, user)
	s.temps = append(s.temps, temperature)
	if s.err != nil {
		return "", s.err
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func TestPlannerPlan(t *testing.T) {
	stub := &stubCompleter{responses: []string{`Sure!
{
    "chapters": [
        {"number": 1, "title": "Uno", "topics": ["a", "b"], "estimated_length": 1200},
        {"number": 2, "title": "Dos", "topics": ["c"], "estimated_length": 1200},
        {"number": 3, "title": "Tres", "topics": ["d"], "estimated_length": 1200}
    ],
    "total_estimated_length": 3600
}`}}

	p := NewPlanner(stub)
	plan, err := p.Plan(context.Background(), "historia del jazz", "es", "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Chapters) != 3 {
		t.Fatalf("chapters = %d, want 3", len(plan.Chapters))
	}
	if stub.temps[0] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", stub.temps[0])
	}
	if !strings.Contains(stub.users[0], "historia del jazz") {
		t.Error("planning prompt missing topic")
	}
}

func TestPlannerEmptyTopic(t *testing.T) {
	p := NewPlanner(&stubCompleter{responses: []string{"{}"}})
	if _, err := p.Plan(context.Background(), "", "es", "short"); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("err = %v, want ErrEmptyTopic", err)
	}
}

func TestPlannerLLMErrorPropagates(t *testing.T) {
	p := NewPlanner(&stubCompleter{err: errors.New("connection refused")})
	if _, err := p.Plan(context.Background(), "jazz", "en", "short"); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestPlannerFallbackOnGarbage(t *testing.T) {
	p := NewPlanner(&stubCompleter{responses: []string{"I'd rather write free prose about jazz."}})
	plan, err := p.Plan(context.Background(), "jazz", "en", "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// short preset minimum is 3 chapters
	if len(plan.Chapters) != 3 {
		t.Fatalf("fallback chapters = %d, want 3", len(plan.Chapters))
	}
	if plan.Chapters[0].Title != "Introduction" {
		t.Errorf("first chapter = %q, want Introduction", plan.Chapters[0].Title)
	}
	if plan.TotalEstimatedLength != 3*1200 {
		t.Errorf("total = %d, want %d", plan.TotalEstimatedLength, 3*1200)
	}
}

func TestPlannerFallbackWhenRepairBelowMinimum(t *testing.T) {
	// Outer JSON broken, only one chapter object recoverable; short needs 3.
	stub := &stubCompleter{responses: []string{`{"chapters": [
        {"number": 1, "title": "Only one", "topics": ["a"], "estimated_length": 1200},
        {"number": 2, "title": "Trunca`}}
	p := NewPlanner(stub)
	plan, err := p.Plan(context.Background(), "jazz", "es", "short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Chapters) != 3 {
		t.Fatalf("chapters = %d, want 3 from fallback", len(plan.Chapters))
	}
	if plan.Chapters[0].Title != "Introducción" {
		t.Errorf("first chapter = %q, want Introducción", plan.Chapters[0].Title)
	}
}

func testPlan() *models.Plan {
	return &models.Plan{
		Chapters: []models.ChapterSpec{
			{Number: 1, Title: "Origins", Topics: []string{"history"}, EstimatedLength: 1200},
			{Number: 2, Title: "Growth", Topics: []string{"expansion"}, EstimatedLength: 1200},
		},
		TotalEstimatedLength: 2400,
	}
}

func TestGeneratorGenerate(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		"First chapter text with several words here.",
		"Second chapter text.",
	}}
	g := NewGenerator("generator1", stub)

	chapters, err := g.Generate(context.Background(), testPlan(), "jazz", "en", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(chapters))
	}
	if chapters[0].WordCount != 7 {
		t.Errorf("word count = %d, want 7", chapters[0].WordCount)
	}
	if chapters[1].Number != 2 || chapters[1].Title != "Growth" {
		t.Errorf("chapter 2 = %+v", chapters[1])
	}
	if stub.temps[0] != 0.8 {
		t.Errorf("temperature = %v, want 0.8", stub.temps[0])
	}
	if !strings.Contains(stub.users[0], "Chapter 1: Origins") {
		t.Errorf("prompt missing chapter header: %q", stub.users[0])
	}
	if !strings.Contains(stub.users[0], "approximately 1200 words") {
		t.Error("prompt missing estimated length")
	}
}

func TestGeneratorNoPlan(t *testing.T) {
	g := NewGenerator("generator1", &stubCompleter{responses: []string{"x"}})
	if _, err := g.Generate(context.Background(), nil, "jazz", "en", nil); !errors.Is(err, ErrNoPlan) {
		t.Errorf("nil plan: err = %v, want ErrNoPlan", err)
	}
	if _, err := g.Generate(context.Background(), &models.Plan{}, "jazz", "en", nil); !errors.Is(err, ErrNoPlan) {
		t.Errorf("empty plan: err = %v, want ErrNoPlan", err)
	}
}

func TestGeneratorFeedbackSplicing(t *testing.T) {
	stub := &stubCompleter{responses: []string{"texto", "texto"}}
	g := NewGenerator("generator2", stub)

	feedback := &models.FeedbackEntry{
		Iteration:               1,
		OverallScore:            60,
		Decision:                models.DecisionImprove,
		ImprovementInstructions: "Acorta los párrafos.",
		ScoresByChapter: []models.ChapterScore{
			{Chapter: 2, Score: 55, Feedback: "El segundo capítulo repite ideas."},
		},
	}

	if _, err := g.Generate(context.Background(), testPlan(), "jazz", "es", feedback); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stub.systems[0], "Acorta los párrafos.") {
		t.Error("general feedback not spliced into system prompt")
	}
	if strings.Contains(stub.users[0], "El segundo capítulo repite ideas.") {
		t.Error("chapter 2 feedback leaked into chapter 1 prompt")
	}
	if !strings.Contains(stub.users[1], "El segundo capítulo repite ideas.") {
		t.Error("chapter 2 feedback missing from chapter 2 prompt")
	}
}

func TestGeneratorLLMErrorAborts(t *testing.T) {
	g := NewGenerator("generator1", &stubCompleter{err: errors.New("timeout")})
	if _, err := g.Generate(context.Background(), testPlan(), "jazz", "en", nil); err == nil {
		t.Error("expected error, got nil")
	}
}

func testChapters(prefix string) []models.Chapter {
	return []models.Chapter{
		{Number: 1, Title: "Origins", Content: prefix + " chapter one", WordCount: 3},
		{Number: 2, Title: "Growth", Content: prefix + " chapter two", WordCount: 3},
	}
}

func TestEvaluatorEvaluate(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{
        "overall_score": 82,
        "scores_by_chapter": [{"chapter": 1, "score": 85, "feedback": "solid"}],
        "strengths": ["clear"],
        "weaknesses": [],
        "suggestions": [],
        "decision": "improve",
        "improvement_instructions": ""
    }`}}
	e := NewEvaluator(stub)

	eval, err := e.Evaluate(context.Background(), testChapters("v1"), testChapters("v2"), "en", 70, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverallScore != 82 {
		t.Errorf("score = %d, want 82", eval.OverallScore)
	}
	// 82 >= 70: the LLM's own "improve" must be overridden.
	if eval.Decision != models.DecisionAccept {
		t.Errorf("decision = %q, want accept", eval.Decision)
	}
	if stub.temps[0] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", stub.temps[0])
	}
	if !strings.Contains(stub.users[0], "CONTENT FROM GENERATOR 1") || !strings.Contains(stub.users[0], "CONTENT FROM GENERATOR 2") {
		t.Error("evaluation prompt missing variant sections")
	}
}

func TestEvaluatorNothingToEvaluate(t *testing.T) {
	e := NewEvaluator(&stubCompleter{responses: []string{"{}"}})
	if _, err := e.Evaluate(context.Background(), nil, nil, "en", 70, 0, 3); !errors.Is(err, ErrNothingToEvaluate) {
		t.Errorf("err = %v, want ErrNothingToEvaluate", err)
	}
}

func TestEvaluatorNeutralFallback(t *testing.T) {
	e := NewEvaluator(&stubCompleter{responses: []string{"this is not json at all"}})
	eval, err := e.Evaluate(context.Background(), testChapters("v1"), nil, "es", 70, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverallScore != 50 {
		t.Errorf("score = %d, want neutral 50", eval.OverallScore)
	}
	if eval.Decision != models.DecisionImprove {
		t.Errorf("decision = %q, want improve", eval.Decision)
	}
}

func TestDeriveDecision(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		threshold int
		iter      int
		max       int
		want      models.Decision
	}{
		{name: "above threshold accepts", score: 75, threshold: 70, iter: 0, max: 3, want: models.DecisionAccept},
		{name: "at threshold accepts", score: 70, threshold: 70, iter: 0, max: 3, want: models.DecisionAccept},
		{name: "below threshold with budget improves", score: 60, threshold: 70, iter: 0, max: 3, want: models.DecisionImprove},
		{name: "near-miss exhausted is forgiven", score: 60, threshold: 70, iter: 3, max: 3, want: models.DecisionAccept},
		{name: "very low exhausted rejects", score: 30, threshold: 70, iter: 3, max: 3, want: models.DecisionReject},
		{name: "last allowed iteration improves", score: 60, threshold: 70, iter: 2, max: 3, want: models.DecisionImprove},
		{name: "rewrite band boundary is forgiven", score: 40, threshold: 70, iter: 3, max: 3, want: models.DecisionAccept},
		{name: "just under rewrite band rejects", score: 39, threshold: 70, iter: 3, max: 3, want: models.DecisionReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveDecision(tt.score, tt.threshold, tt.iter, tt.max); got != tt.want {
				t.Errorf("DeriveDecision(%d,%d,%d,%d) = %q, want %q", tt.score, tt.threshold, tt.iter, tt.max, got, tt.want)
			}
		})
	}
}

func TestEvaluatorPreviewTruncation(t *testing.T) {
	long := strings.Repeat("palabra ", 600) // ~4800 chars
	chapters := []models.Chapter{{Number: 1, Title: "Largo", Content: long, WordCount: 600}}
	stub := &stubCompleter{responses: []string{`{"overall_score": 75, "decision": "accept"}`}}
	e := NewEvaluator(stub)

	if _, err := e.Evaluate(context.Background(), chapters, nil, "es", 70, 0, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.users[0], "...") {
		t.Error("long chapter not truncated in prompt")
	}
	if strings.Contains(stub.users[0], long) {
		t.Error("full chapter content leaked into prompt")
	}
}
