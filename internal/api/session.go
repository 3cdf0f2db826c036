package api

import (
	"net/http"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/session"
)

// SetActivityTypeRequest is the payload for PUT /v1/session/type.
type SetActivityTypeRequest struct {
	ActivityType string `json:"activityType"`
}

// FinishResponse wraps the finish result with an optional persistence warning.
type FinishResponse struct {
	session.FinishResult
	Persisted bool   `json:"persisted"`
	Warning   string `json:"warning,omitempty"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) sessionCommand(cmd func(*session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, auth.ScopeTrackerWrite) {
			return
		}
		if err := cmd(h.session); err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.session.Snapshot())
	}
}

func (h *Handler) setActivityType(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerWrite) {
		return
	}
	var req SetActivityTypeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.SetActivityType(req.ActivityType); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) finishSession(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerWrite) {
		return
	}
	res, err := h.session.Finish(r.Context())
	if err != nil && !res.Activity.Applied {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FinishResponse{
		FinishResult: res,
		Persisted:    res.Activity.Persisted && res.DailySteps.Persisted,
		Warning:      h.warning(err),
	})
}
