package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/auth"
	"github.com/fablecast/fablecast/internal/workflow"
)

const (
	runsWSReadLimit    = 4 << 10
	runsWSPingInterval = 30 * time.Second
)

var runsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// runsWSOutMessage is the JSON shape sent to the client.
type runsWSOutMessage struct {
	Type  string          `json:"type"`
	Event *workflow.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

// RunEvents handles GET /v1/runs/{id}/events, a WebSocket stream of live
// progress events while the run is processed.
func (h *Handler) RunEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "Event streaming not configured", http.StatusServiceUnavailable)
		return
	}

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

	// Ownership check before upgrading; GetRun already enforces it.
	if _, err := h.runService.GetRun(r.Context(), runID, userID); err != nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := runsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("runs ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(runsWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(60 * time.Minute))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Minute))
		return nil
	})

	events, cancel := h.hub.Subscribe(runID)
	defer cancel()

	// Drain client frames so close handshakes and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(runsWSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeWSJSON(conn, runsWSOutMessage{Type: "event", Event: &ev}); err != nil {
				log.Debug().Err(err).Msg("runs ws write")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
