package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fablecast/fablecast/internal/models"
)

// RunPublisher publishes run messages (e.g. to Kafka). May be nil to skip publishing.
type RunPublisher interface {
	PublishRun(ctx context.Context, runID uuid.UUID, traceID string) error
}

// URLSigner produces time-limited download URLs for stored objects.
// May be nil when no object storage is configured.
type URLSigner interface {
	GeneratePresignedURL(key string, expiration time.Duration) (string, error)
}

// runRepository is the subset of run DB operations used by RunService.
type runRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, runID uuid.UUID) (*models.Run, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Run, error)
	GetFeedback(ctx context.Context, runID uuid.UUID) ([]models.FeedbackEntry, error)
}
