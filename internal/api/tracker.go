package api

import (
	"net/http"
	"strings"
	"time"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
)

// GoalRequest is the payload for PUT /v1/goal.
type GoalRequest struct {
	DailyGoal int `json:"dailyGoal"`
}

// GoalResponse reports the goal after an update.
type GoalResponse struct {
	DailyGoal int    `json:"dailyGoal"`
	Persisted bool   `json:"persisted"`
	Warning   string `json:"warning,omitempty"`
}

// ProfileRequest is the onboarding/profile form.
type ProfileRequest struct {
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Height    formValue `json:"height"`
	Weight    formValue `json:"weight"`
	DailyGoal formValue `json:"dailyGoal"`
	Image     string    `json:"image"`
}

// ProfileResponse is returned by the profile endpoints.
type ProfileResponse struct {
	Profile   *domain.UserProfile `json:"profile"`
	DailyGoal int                 `json:"dailyGoal"`
	Persisted bool                `json:"persisted"`
	Warning   string              `json:"warning,omitempty"`
}

// ImageRequest is the payload for PUT /v1/profile/image.
type ImageRequest struct {
	Image string `json:"image"`
}

// SampleView is one pushed accelerometer reading; T is unix milliseconds.
type SampleView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	T int64   `json:"t"`
}

// PushSamplesRequest is the payload for POST /v1/motion/samples.
type PushSamplesRequest struct {
	Samples []SampleView `json:"samples"`
}

// PushSamplesResponse reports how many deliveries happened.
type PushSamplesResponse struct {
	Accepted  int `json:"accepted"`
	Delivered int `json:"delivered"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Summary(period))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Dashboard())
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"markedDates": h.service.Calendar()})
}

func (h *Handler) goal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !authorize(w, r, auth.ScopeTrackerRead) {
			return
		}
		writeJSON(w, http.StatusOK, GoalResponse{DailyGoal: h.service.Store().DailyGoal(), Persisted: true})
	case http.MethodPut:
		if !authorize(w, r, auth.ScopeTrackerWrite) {
			return
		}
		var req GoalRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := h.service.SetDailyGoal(r.Context(), req.DailyGoal)
		if err != nil && !res.Applied {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GoalResponse{
			DailyGoal: h.service.Store().DailyGoal(),
			Persisted: res.Persisted,
			Warning:   h.warning(err),
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !authorize(w, r, auth.ScopeTrackerRead) {
			return
		}
		writeJSON(w, http.StatusOK, h.profileResponse(true, nil))
	case http.MethodPut:
		if !authorize(w, r, auth.ScopeTrackerWrite) {
			return
		}
		var req ProfileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := h.service.SubmitProfileForm(r.Context(), domain.ProfileForm{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Height:    string(req.Height),
			Weight:    string(req.Weight),
			DailyGoal: string(req.DailyGoal),
			Image:     req.Image,
		})
		if err != nil && !res.Result.Applied {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.profileResponse(res.Result.Persisted, err))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) profileImage(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerWrite) {
		return
	}
	var req ImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "image is required")
		return
	}
	res, err := h.service.Store().UpdateUserImage(r.Context(), strings.TrimSpace(req.Image))
	writeJSON(w, http.StatusOK, h.profileResponse(res.Persisted, err))
}

func (h *Handler) profileResponse(persisted bool, err error) ProfileResponse {
	resp := ProfileResponse{
		DailyGoal: h.service.Store().DailyGoal(),
		Persisted: persisted,
		Warning:   h.warning(err),
	}
	if profile, ok := h.service.Store().UserProfile(); ok {
		resp.Profile = &profile
	}
	return resp
}

func (h *Handler) pushSamples(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerWrite) {
		return
	}
	if h.hub == nil {
		writeError(w, http.StatusConflict, "conflict", "motion source is not push")
		return
	}
	var req PushSamplesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp := PushSamplesResponse{Accepted: len(req.Samples)}
	for _, s := range req.Samples {
		ts := h.now()
		if s.T > 0 {
			ts = time.UnixMilli(s.T)
		}
		resp.Delivered += h.hub.Push(motion.Sample{X: s.X, Y: s.Y, Z: s.Z, T: ts})
	}
	writeJSON(w, http.StatusAccepted, resp)
}
