package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/database"
	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/models"
)

// maxTopicLength caps user topics; anything longer is noise for the planner.
const maxTopicLength = 500

const downloadURLExpiration = 1 * time.Hour

// RunService handles run-related business logic
type RunService struct {
	runRepo   runRepository
	publisher RunPublisher
	signer    URLSigner
	config    *config.Config
}

// NewRunService creates a new RunService
func NewRunService(db *database.DB, publisher RunPublisher, signer URLSigner, cfg *config.Config) *RunService {
	return &RunService{
		runRepo:   database.NewRunRepository(db),
		publisher: publisher,
		signer:    signer,
		config:    cfg,
	}
}

// CreateRun validates the request, persists a queued run and hands it to the
// worker through the publisher.
func (s *RunService) CreateRun(ctx context.Context, req *models.CreateRunRequest, userID, apiKeyID uuid.UUID) (*models.CreateRunResponse, error) {
	if err := s.normalizeCreateRunRequest(req); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	run := &models.Run{
		ID:               uuid.New(),
		UserID:           userID,
		APIKeyID:         apiKeyID,
		Status:           "queued",
		Topic:            req.Topic,
		Language:         req.Language,
		Size:             req.Size,
		VoiceType:        req.VoiceType,
		NarratorGender:   req.NarratorGender,
		QualityThreshold: req.QualityThreshold,
		MaxIterations:    req.MaxIterations,
		CreatedAt:        time.Now(),
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if s.publisher != nil {
		traceID := uuid.New().String()
		if err := s.publisher.PublishRun(ctx, run.ID, traceID); err != nil {
			log.Error().Err(err).Str("run_id", run.ID.String()).Msg("Failed to publish run to Kafka")
		}
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Str("user_id", userID.String()).
		Str("topic", run.Topic).
		Str("language", run.Language).
		Str("size", run.Size).
		Msg("Run created")

	return &models.CreateRunResponse{
		RunID:     run.ID,
		Status:    run.Status,
		CreatedAt: run.CreatedAt,
	}, nil
}

// GetRun retrieves a run with its feedback history and download URLs.
func (s *RunService) GetRun(ctx context.Context, runID, userID uuid.UUID) (*models.RunStatusResponse, error) {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run not found: %w", err)
	}

	// Verify ownership
	if run.UserID != userID {
		return nil, fmt.Errorf("access denied")
	}

	feedback, err := s.runRepo.GetFeedback(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	resp := &models.RunStatusResponse{
		Run:      *run,
		Feedback: feedback,
	}
	resp.TextURL = s.downloadURL(run.OutputTextKey)
	resp.AudioURL = s.downloadURL(run.OutputAudioKey)

	return resp, nil
}

func (s *RunService) downloadURL(key *string) string {
	if key == nil || *key == "" || s.signer == nil {
		return ""
	}
	url, err := s.signer.GeneratePresignedURL(*key, downloadURLExpiration)
	if err != nil {
		log.Warn().Err(err).Str("key", *key).Msg("Failed to presign download URL")
		return ""
	}
	return url
}

// ListRuns lists runs for a user
func (s *RunService) ListRuns(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := s.runRepo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// normalizeCreateRunRequest validates the request and fills defaults in place.
func (s *RunService) normalizeCreateRunRequest(req *models.CreateRunRequest) error {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if len(req.Topic) > maxTopicLength {
		return fmt.Errorf("topic exceeds maximum length of %d characters", maxTopicLength)
	}

	if req.Language == "" {
		req.Language = s.config.DefaultLanguage
	}
	if !language.IsSupported(req.Language) {
		return fmt.Errorf("invalid language: must be es or en")
	}

	if req.Size == "" {
		req.Size = s.config.DefaultSize
	}
	if !language.IsValidSize(req.Size) {
		return fmt.Errorf("invalid size: must be short, medium, or long")
	}

	if req.VoiceType == "" {
		req.VoiceType = "single"
	}
	if req.VoiceType != "single" && req.VoiceType != "multi" {
		return fmt.Errorf("invalid voice_type: must be single or multi")
	}

	if req.NarratorGender == "" {
		req.NarratorGender = "female"
	}
	if req.NarratorGender != "male" && req.NarratorGender != "female" {
		return fmt.Errorf("invalid narrator_gender: must be male or female")
	}

	if req.QualityThreshold == 0 {
		req.QualityThreshold = s.config.QualityThreshold
	}
	if req.QualityThreshold < 0 || req.QualityThreshold > 100 {
		return fmt.Errorf("quality_threshold must be between 0 and 100")
	}

	if req.MaxIterations == 0 {
		req.MaxIterations = s.config.MaxIterations
	}
	if req.MaxIterations < 1 || req.MaxIterations > 10 {
		return fmt.Errorf("max_iterations must be between 1 and 10")
	}

	return nil
}
