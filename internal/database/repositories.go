package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fablecast/fablecast/internal/models"
)

// RunRepository handles run-related database operations
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create creates a new run
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (
			id, user_id, api_key_id, status, topic, language, size,
			voice_type, narrator_gender, quality_threshold, max_iterations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.UserID, run.APIKeyID, run.Status, run.Topic, run.Language,
		run.Size, run.VoiceType, run.NarratorGender, run.QualityThreshold,
		run.MaxIterations, run.CreatedAt,
	)

	return err
}

const runColumns = `id, user_id, api_key_id, status, topic, language, size,
	voice_type, narrator_gender, quality_threshold, max_iterations, iterations,
	overall_score, output_text_key, output_audio_key, error_code, error_message,
	created_at, started_at, finished_at`

func scanRun(scan func(...any) error) (*models.Run, error) {
	run := &models.Run{}
	err := scan(
		&run.ID, &run.UserID, &run.APIKeyID, &run.Status, &run.Topic,
		&run.Language, &run.Size, &run.VoiceType, &run.NarratorGender,
		&run.QualityThreshold, &run.MaxIterations, &run.Iterations,
		&run.OverallScore, &run.OutputTextKey, &run.OutputAudioKey,
		&run.ErrorCode, &run.ErrorMessage,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	return run, err
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	return run, err
}

// ListByUser retrieves runs for a user with pagination
func (r *RunRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// MarkRunning transitions a run to running and stamps started_at.
func (r *RunRepository) MarkRunning(ctx context.Context, runID uuid.UUID) error {
	query := `
		UPDATE runs SET status = 'running', started_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`
	_, err := r.db.ExecContext(ctx, query, runID)
	return err
}

// RunOutcome captures everything the worker learned about a finished run.
type RunOutcome struct {
	OverallScore *int
	Iterations   int
	Feedback     []models.FeedbackEntry
	TextKey      *string
	AudioKey     *string
}

// MarkSucceeded records an accepted run and its output object keys.
func (r *RunRepository) MarkSucceeded(ctx context.Context, runID uuid.UUID, outcome RunOutcome) error {
	return r.finish(ctx, runID, "succeeded", outcome)
}

// MarkRejected records a run whose content never cleared the quality bar.
func (r *RunRepository) MarkRejected(ctx context.Context, runID uuid.UUID, outcome RunOutcome) error {
	return r.finish(ctx, runID, "rejected", outcome)
}

func (r *RunRepository) finish(ctx context.Context, runID uuid.UUID, status string, outcome RunOutcome) error {
	feedbackJSON, err := json.Marshal(outcome.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $1, iterations = $2, overall_score = $3, feedback = $4,
			output_text_key = $5, output_audio_key = $6, finished_at = NOW()
		WHERE id = $7
	`
	_, err = r.db.ExecContext(ctx, query,
		status, outcome.Iterations, outcome.OverallScore, feedbackJSON,
		outcome.TextKey, outcome.AudioKey, runID,
	)
	return err
}

// MarkFailed records an aborted run with its error.
func (r *RunRepository) MarkFailed(ctx context.Context, runID uuid.UUID, errorCode, errorMessage string) error {
	query := `
		UPDATE runs
		SET status = 'failed', error_code = $1, error_message = $2, finished_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, errorCode, errorMessage, runID)
	return err
}

// GetFeedback returns the stored evaluator feedback history for a run.
func (r *RunRepository) GetFeedback(ctx context.Context, runID uuid.UUID) ([]models.FeedbackEntry, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT feedback FROM runs WHERE id = $1`, runID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []models.FeedbackEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
	}
	return entries, nil
}

// APIKeyRepository handles API key operations
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// KeyLookupHash returns the lookup hash for an API key (sha256 hex).
// Used for secure lookup without storing the plain key.
func KeyLookupHash(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// GetByKeyLookup retrieves an API key by its lookup hash (sha256 hex of the plain key)
func (r *APIKeyRepository) GetByKeyLookup(ctx context.Context, lookup string) (*models.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, status, created_at
		FROM api_keys
		WHERE key_lookup = $1
	`

	key := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, lookup).Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.Status, &key.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api key not found")
	}

	return key, err
}

// CreateAPIKey creates a new API key for a user and returns the plain key (shown only once).
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, userID uuid.UUID) (plainKey string, key *models.APIKey, err error) {
	const keyLen = 32
	b := make([]byte, keyLen)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	plainKey = "fk_" + hex.EncodeToString(b)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}
	lookup := KeyLookupHash(plainKey)

	key = &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		KeyHash:   string(hash),
		Status:    "active",
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_lookup, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		key.ID, key.UserID, key.KeyHash, lookup, key.Status, key.CreatedAt,
	)
	if err != nil {
		return "", nil, err
	}
	return plainKey, key, nil
}
