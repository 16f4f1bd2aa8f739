// Package events fans workflow progress out to subscribers, keyed by run ID.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/fablecast/internal/workflow"
)

// subscriberBuffer bounds each subscriber channel. A slow subscriber drops
// events rather than blocking the workflow.
const subscriberBuffer = 64

// Hub is an in-process broadcast hub for run progress events.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan workflow.Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[uuid.UUID]map[chan workflow.Event]struct{}{}}
}

// Subscribe registers for a run's events. The returned cancel function must
// be called to release the subscription; the channel is closed afterwards.
func (h *Hub) Subscribe(runID uuid.UUID) (<-chan workflow.Event, func()) {
	ch := make(chan workflow.Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = map[chan workflow.Event]struct{}{}
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[runID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, runID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the run.
func (h *Hub) Publish(runID uuid.UUID, ev workflow.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[runID] {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("run_id", runID.String()).Str("type", ev.Type).
				Msg("Dropping event for slow subscriber")
		}
	}
}

// Observer adapts the hub to a single run's workflow observer.
func (h *Hub) Observer(runID uuid.UUID) workflow.Observer {
	return runObserver{hub: h, runID: runID}
}

type runObserver struct {
	hub   *Hub
	runID uuid.UUID
}

func (o runObserver) OnEvent(ev workflow.Event) {
	o.hub.Publish(o.runID, ev)
}
