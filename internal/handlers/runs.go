package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/auth"
	"github.com/fablecast/fablecast/internal/events"
	"github.com/fablecast/fablecast/internal/models"
	"github.com/fablecast/fablecast/internal/tts"
)

// runService is the service surface the HTTP layer depends on.
type runService interface {
	CreateRun(ctx context.Context, req *models.CreateRunRequest, userID, apiKeyID uuid.UUID) (*models.CreateRunResponse, error)
	GetRun(ctx context.Context, runID, userID uuid.UUID) (*models.RunStatusResponse, error)
	ListRuns(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Run, error)
}

// dbPinger reports database connectivity.
type dbPinger interface {
	Health() error
}

// speechPinger reports speech backend connectivity. May be nil when the API
// process runs without a TTS backend configured.
type speechPinger interface {
	Health(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	runService runService
	hub        *events.Hub
	voices     tts.VoiceMap
	ttsModel   string
	db         dbPinger
	speech     speechPinger
}

// NewHandler creates a new handler
func NewHandler(runService runService, hub *events.Hub, voices tts.VoiceMap, ttsModel string, db dbPinger, speech speechPinger) *Handler {
	return &Handler{
		runService: runService,
		hub:        hub,
		voices:     voices,
		ttsModel:   ttsModel,
		db:         db,
		speech:     speech,
	}
}

// CreateRun handles POST /v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	apiKeyID, err := auth.GetAPIKeyID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.runService.CreateRun(r.Context(), &req, userID, apiKeyID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create run")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.runService.GetRun(r.Context(), runID, userID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to get run")
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRuns handles GET /v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	var cursor *time.Time
	cursorStr := r.URL.Query().Get("cursor")
	if cursorStr != "" {
		if parsedCursor, err := time.Parse(time.RFC3339, cursorStr); err == nil {
			cursor = &parsedCursor
		}
	}

	runs, err := h.runService.ListRuns(r.Context(), userID, limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list runs")
		writeJSONError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// DownloadRunText handles GET /v1/runs/{id}/text
func (h *Handler) DownloadRunText(w http.ResponseWriter, r *http.Request) {
	h.redirectToArtifact(w, r, func(resp *models.RunStatusResponse) string { return resp.TextURL })
}

// DownloadRunAudio handles GET /v1/runs/{id}/audio
func (h *Handler) DownloadRunAudio(w http.ResponseWriter, r *http.Request) {
	h.redirectToArtifact(w, r, func(resp *models.RunStatusResponse) string { return resp.AudioURL })
}

// redirectToArtifact resolves the run and redirects to a presigned URL.
func (h *Handler) redirectToArtifact(w http.ResponseWriter, r *http.Request, pick func(*models.RunStatusResponse) string) {
	vars := mux.Vars(r)
	runID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.runService.GetRun(r.Context(), runID, userID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}

	url := pick(resp)
	if url == "" {
		writeJSONError(w, http.StatusNotFound, "artifact not available")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// ListVoices handles GET /v1/voices
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	if engine == "" {
		engine = h.ttsModel
	}

	voices, err := h.voices.AvailableVoices(engine)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"engine": engine,
		"voices": voices,
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.Health(); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.speech != nil {
		if err := h.speech.Health(r.Context()); err != nil {
			checks["tts"] = err.Error()
			healthy = false
		} else {
			checks["tts"] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
