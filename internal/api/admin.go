package api

import (
	"net/http"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/outbox"
)

// Outbox is the part of the event dispatcher the admin routes need.
type Outbox interface {
	Stats() outbox.Stats
	Requeue() int
}

// WithOutbox enables the /v1/admin/outbox routes.
func WithOutbox(o Outbox) Option {
	return func(h *Handler) {
		h.outbox = o
	}
}

// RequeueResponse reports how many dead letters went back on the queue.
type RequeueResponse struct {
	Requeued int          `json:"requeued"`
	Stats    outbox.Stats `json:"stats"`
}

func (h *Handler) outboxStats(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerAdmin) || !h.outboxEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.outbox.Stats())
}

func (h *Handler) requeueDeadLetters(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerAdmin) || !h.outboxEnabled(w) {
		return
	}
	moved := h.outbox.Requeue()
	h.logger.Printf("requeued %d dead letters", moved)
	writeJSON(w, http.StatusOK, RequeueResponse{Requeued: moved, Stats: h.outbox.Stats()})
}

func (h *Handler) outboxEnabled(w http.ResponseWriter) bool {
	if h.outbox == nil {
		writeError(w, http.StatusConflict, "outbox_disabled", "event publishing is not configured")
		return false
	}
	return true
}
