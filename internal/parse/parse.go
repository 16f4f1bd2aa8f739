// Package parse recovers structured data from LLM output. Models wrap JSON
// in prose or markdown fences more often than not, so every parser here
// first slices out the outermost JSON object and only then goes strict.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fablecast/fablecast/internal/models"
)

// ErrNoJSON indicates the response contains no JSON object at all.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSONObject slices the response from the first '{' to the last '}'.
// It does not validate the slice; callers unmarshal it themselves.
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// chapterObject matches a flat JSON object mentioning a chapter number.
// Topics arrays contain no braces, so the non-greedy flat match is enough.
var chapterObject = regexp.MustCompile(`\{[^{}]*"number"[^{}]*\}`)

// Plan parses a planner response. Strict parse first; if the object is
// malformed it falls back to harvesting individual chapter objects and
// recomputing the total length from their estimates. The repaired flag tells
// callers the plan came from the recovery tier so they can hold it to a
// stricter bar. Returns an error only when not a single chapter can be
// recovered.
func Plan(s string) (plan *models.Plan, repaired bool, err error) {
	obj, err := ExtractJSONObject(s)
	if err != nil {
		return nil, false, err
	}

	var p models.Plan
	if err := json.Unmarshal([]byte(obj), &p); err == nil && p.Chapters != nil {
		return &p, false, nil
	}

	p2, err := repairPlan(obj)
	if err != nil {
		return nil, false, err
	}
	return p2, true, nil
}

func repairPlan(obj string) (*models.Plan, error) {
	matches := chapterObject.FindAllString(obj, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("plan response malformed and no chapter objects found")
	}

	plan := &models.Plan{}
	for _, m := range matches {
		var ch models.ChapterSpec
		if err := json.Unmarshal([]byte(m), &ch); err != nil {
			continue
		}
		if ch.Number <= 0 || ch.Title == "" {
			continue
		}
		plan.Chapters = append(plan.Chapters, ch)
		plan.TotalEstimatedLength += ch.EstimatedLength
	}

	if len(plan.Chapters) == 0 {
		return nil, fmt.Errorf("plan response malformed and no valid chapters recovered")
	}
	return plan, nil
}

// Evaluation parses an evaluator response strictly. There is no repair tier;
// the evaluator substitutes a neutral verdict when this fails.
func Evaluation(s string) (*models.Evaluation, error) {
	obj, err := ExtractJSONObject(s)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	if _, ok := raw["overall_score"]; !ok {
		return nil, fmt.Errorf("evaluation response missing overall_score")
	}

	var eval models.Evaluation
	if err := json.Unmarshal([]byte(obj), &eval); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	return &eval, nil
}
