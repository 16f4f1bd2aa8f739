package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey represents an API key for authentication
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	KeyHash   string    `json:"-"`
	Status    string    `json:"status"` // active, disabled
	CreatedAt time.Time `json:"created_at"`
}

// Decision is the evaluator's verdict over a generation iteration.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionImprove Decision = "improve"
	DecisionReject  Decision = "reject"
)

// ChapterSpec is one planned chapter before any content exists.
type ChapterSpec struct {
	Number          int      `json:"number"`
	Title           string   `json:"title"`
	Topics          []string `json:"topics"`
	EstimatedLength int      `json:"estimated_length"`
}

// Plan is the planner's chapter outline for a topic.
type Plan struct {
	Title                string        `json:"title"`
	Chapters             []ChapterSpec `json:"chapters"`
	TotalEstimatedLength int           `json:"total_estimated_length"`
}

// Chapter is a generated chapter with its text.
type Chapter struct {
	Number    int    `json:"chapter_number"`
	Title     string `json:"chapter_title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// ChapterScore is the evaluator's per-chapter verdict.
type ChapterScore struct {
	Chapter  int    `json:"chapter"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Evaluation is the evaluator's full verdict over both content variants.
type Evaluation struct {
	OverallScore            int            `json:"overall_score"`
	Decision                Decision       `json:"decision"`
	ScoresByChapter         []ChapterScore `json:"scores_by_chapter"`
	Strengths               []string       `json:"strengths"`
	Weaknesses              []string       `json:"weaknesses"`
	Suggestions             []string       `json:"suggestions"`
	ImprovementInstructions string         `json:"improvement_instructions"`
}

// FeedbackEntry records one evaluator pass for the generators to read back
// on the next iteration.
type FeedbackEntry struct {
	Iteration               int            `json:"iteration"`
	OverallScore            int            `json:"overall_score"`
	Decision                Decision       `json:"decision"`
	ImprovementInstructions string         `json:"improvement_instructions"`
	ScoresByChapter         []ChapterScore `json:"scores_by_chapter"`
}

// Run represents an audiobook generation run
type Run struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	APIKeyID         uuid.UUID  `json:"api_key_id"`
	Status           string     `json:"status"` // queued, running, succeeded, rejected, failed
	Topic            string     `json:"topic"`
	Language         string     `json:"language"` // es, en
	Size             string     `json:"size"`     // short, medium, long
	VoiceType        string     `json:"voice_type"` // single, multi
	NarratorGender   string     `json:"narrator_gender"` // male, female
	QualityThreshold int        `json:"quality_threshold"`
	MaxIterations    int        `json:"max_iterations"`
	Iterations       int        `json:"iterations"`
	OverallScore     *int       `json:"overall_score,omitempty"`
	OutputTextKey    *string    `json:"-"`
	OutputAudioKey   *string    `json:"-"`
	ErrorCode        *string    `json:"error_code,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// CreateRunRequest represents a request to create a new run
type CreateRunRequest struct {
	Topic            string `json:"topic"`
	Language         string `json:"language"`
	Size             string `json:"size"`
	VoiceType        string `json:"voice_type,omitempty"`
	NarratorGender   string `json:"narrator_gender,omitempty"`
	QualityThreshold int    `json:"quality_threshold,omitempty"`
	MaxIterations    int    `json:"max_iterations,omitempty"`
}

// CreateRunResponse represents the response when creating a run
type CreateRunResponse struct {
	RunID     uuid.UUID `json:"run_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatusResponse represents detailed run status
type RunStatusResponse struct {
	Run      Run             `json:"run"`
	Feedback []FeedbackEntry `json:"feedback,omitempty"`
	TextURL  string          `json:"text_url,omitempty"`
	AudioURL string          `json:"audio_url,omitempty"`
}
