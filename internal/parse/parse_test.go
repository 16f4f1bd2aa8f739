package parse

import (
	"errors"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "surrounded by prose", in: "Here is the plan:\n{\"a\":1}\nHope it helps!", want: `{"a":1}`},
		{name: "markdown fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "nested objects", in: `text {"a":{"b":2}} tail`, want: `{"a":{"b":2}}`},
		{name: "no object", in: "sorry, I cannot do that", wantErr: true},
		{name: "only open brace", in: "broken {", wantErr: true},
		{name: "close before open", in: "} oops {", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrNoJSON) {
					t.Fatalf("err = %v, want ErrNoJSON", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanStrict(t *testing.T) {
	in := `Here you go:
{
    "chapters": [
        {"number": 1, "title": "Origins", "topics": ["history", "context"], "estimated_length": 1200},
        {"number": 2, "title": "Fundamentals", "topics": ["basics"], "estimated_length": 1300}
    ],
    "total_estimated_length": 2500
}`
	plan, repaired, err := Plan(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repaired {
		t.Error("repaired = true, want false for well-formed plan")
	}
	if len(plan.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(plan.Chapters))
	}
	if plan.Chapters[0].Title != "Origins" {
		t.Errorf("title = %q, want Origins", plan.Chapters[0].Title)
	}
	if plan.TotalEstimatedLength != 2500 {
		t.Errorf("total = %d, want 2500", plan.TotalEstimatedLength)
	}
	if len(plan.Chapters[0].Topics) != 2 {
		t.Errorf("topics = %d, want 2", len(plan.Chapters[0].Topics))
	}
}

func TestPlanRepair(t *testing.T) {
	// Truncated response: outer object is invalid JSON but two chapter
	// objects are still intact.
	in := `{
    "chapters": [
        {"number": 1, "title": "Origins", "topics": ["history"], "estimated_length": 1200},
        {"number": 2, "title": "Fundamentals", "topics": ["basics"], "estimated_length": 1300},
        {"number": 3, "title": "Adva`

	// ExtractJSONObject needs a closing brace somewhere.
	in += "}"

	plan, repaired, err := Plan(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repaired {
		t.Error("repaired = false, want true for truncated plan")
	}
	if len(plan.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2 recovered", len(plan.Chapters))
	}
	if plan.TotalEstimatedLength != 2500 {
		t.Errorf("recomputed total = %d, want 2500", plan.TotalEstimatedLength)
	}
}

func TestPlanRepairSkipsInvalidChapters(t *testing.T) {
	in := `{"chapters": [
        {"number": 0, "title": "bad number", "estimated_length": 100},
        {"number": 2, "title": "", "estimated_length": 100},
        {"number": 3, "title": "Good", "topics": ["a"], "estimated_length": 900}
    ], "total_estimated_length": oops}`

	plan, _, err := Plan(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Chapters) != 1 {
		t.Fatalf("chapters = %d, want 1", len(plan.Chapters))
	}
	if plan.Chapters[0].Number != 3 {
		t.Errorf("number = %d, want 3", plan.Chapters[0].Number)
	}
	if plan.TotalEstimatedLength != 900 {
		t.Errorf("total = %d, want 900", plan.TotalEstimatedLength)
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no json", in: "I refuse to answer in JSON."},
		{name: "garbage object", in: `{"nothing": "useful"}`},
		{name: "no recoverable chapters", in: `{"chapters": [{"number": bad]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Plan(tt.in); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEvaluation(t *testing.T) {
	in := "The verdict:\n```json\n" + `{
    "overall_score": 85,
    "scores_by_chapter": [{"chapter": 1, "score": 90, "feedback": "strong"}],
    "strengths": ["clear"],
    "weaknesses": ["long paragraphs"],
    "suggestions": ["split them"],
    "decision": "accept",
    "improvement_instructions": ""
}` + "\n```"

	eval, err := Evaluation(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.OverallScore != 85 {
		t.Errorf("score = %d, want 85", eval.OverallScore)
	}
	if len(eval.ScoresByChapter) != 1 || eval.ScoresByChapter[0].Score != 90 {
		t.Errorf("scores_by_chapter = %+v", eval.ScoresByChapter)
	}
	if eval.Decision != "accept" {
		t.Errorf("decision = %q, want accept", eval.Decision)
	}
}

func TestEvaluationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no json", in: "everything looks fine to me"},
		{name: "missing overall_score", in: `{"decision": "accept"}`},
		{name: "invalid json", in: `{"overall_score": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluation(tt.in); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
