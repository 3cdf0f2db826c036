// Package api exposes HTTP handlers for the fitness tracker.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"example.com/fittrack/internal/apperrors"
	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/session"
)

// Handler coordinates HTTP requests with the aggregate and the live session.
type Handler struct {
	service *domain.Service
	session *session.Session
	hub     *motion.Hub
	outbox  Outbox
	now     func() time.Time
	logger  *log.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHub enables POST /v1/motion/samples, fanning samples out through hub.
func WithHub(hub *motion.Hub) Option {
	return func(h *Handler) {
		h.hub = hub
	}
}

// WithClock overrides the clock used for export file names.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithLogger overrides the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, sess *session.Session, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		session: sess,
		now:     time.Now,
		logger:  log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/session", allow(http.MethodGet, h.getSession))
	mux.HandleFunc("/v1/session/start", allow(http.MethodPost, h.sessionCommand((*session.Session).Start)))
	mux.HandleFunc("/v1/session/stop", allow(http.MethodPost, h.sessionCommand((*session.Session).Stop)))
	mux.HandleFunc("/v1/session/toggle", allow(http.MethodPost, h.sessionCommand((*session.Session).Toggle)))
	mux.HandleFunc("/v1/session/reset", allow(http.MethodPost, h.sessionCommand((*session.Session).Reset)))
	mux.HandleFunc("/v1/session/finish", allow(http.MethodPost, h.finishSession))
	mux.HandleFunc("/v1/session/type", allow(http.MethodPut, h.setActivityType))

	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/export", allow(http.MethodGet, h.exportActivities))
	mux.HandleFunc("/v1/motion/samples", allow(http.MethodPost, h.pushSamples))

	mux.HandleFunc("/v1/summary", allow(http.MethodGet, h.summary))
	mux.HandleFunc("/v1/dashboard", allow(http.MethodGet, h.dashboard))
	mux.HandleFunc("/v1/calendar", allow(http.MethodGet, h.calendar))
	mux.HandleFunc("/v1/goal", h.goal)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/profile/image", allow(http.MethodPut, h.profileImage))
	mux.HandleFunc("/v1/admin/outbox", allow(http.MethodGet, h.outboxStats))
	mux.HandleFunc("/v1/admin/outbox/requeue", allow(http.MethodPost, h.requeueDeadLetters))
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func allow(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		fn(w, r)
	}
}

// authorize writes 401/403 and returns false when the caller lacks scope.
func authorize(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// writeFailure maps the error taxonomy onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"type":   "validation_failed",
			"detail": err.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, apperrors.ErrInvalidGoalValue):
		writeError(w, http.StatusBadRequest, "validation_failed", domain.InvalidGoalMessage)
	case errors.Is(err, apperrors.ErrInvalidFormInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperrors.ErrActivityTypeLocked),
		errors.Is(err, apperrors.ErrNothingToFinish),
		errors.Is(err, apperrors.ErrSessionClosed):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperrors.ErrSensorPermissionDenied):
		writeError(w, http.StatusForbidden, "sensor_permission_denied", err.Error())
	case errors.Is(err, apperrors.ErrSensorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "sensor_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// warning returns the text reported alongside an applied but unpersisted write.
func (h *Handler) warning(err error) string {
	if err == nil {
		return ""
	}
	h.logger.Printf("write applied but not persisted: %v", err)
	return err.Error()
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// formValue accepts a JSON string or number and keeps its text, so numeric
// checks happen in domain validation rather than in the decoder.
type formValue string

func (v *formValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = formValue(s)
		return nil
	}
	*v = formValue(data)
	return nil
}
