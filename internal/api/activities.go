package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/export"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Type     string    `json:"type"`
	Duration string    `json:"duration"`
	Calories formValue `json:"calories"`
	Date     time.Time `json:"date"`
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	Activity  domain.ActivityRecord `json:"activity"`
	Persisted bool                  `json:"persisted"`
	Warning   string                `json:"warning,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []domain.ActivityRecord `json:"items"`
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerWrite) {
		return
	}
	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, res, err := h.service.AddManualActivity(r.Context(), domain.ManualEntry{
		Type:     req.Type,
		Duration: req.Duration,
		Calories: string(req.Calories),
		Date:     req.Date,
	})
	if err != nil && !res.Applied {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateActivityResponse{
		Activity:  rec,
		Persisted: res.Persisted,
		Warning:   h.warning(err),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: h.service.History(filterFrom(r))})
}

func (h *Handler) exportActivities(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTrackerRead) {
		return
	}
	records := h.service.History(filterFrom(r))
	now := h.now()

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "csv":
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, records); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeAttachment(w, "text/csv", export.FileName(now), buf.Bytes())
	case "parquet":
		data, err := export.MarshalParquet(records)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeAttachment(w, "application/vnd.apache.parquet", export.ParquetFileName(now), data)
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "format must be csv or parquet")
	}
}

func filterFrom(r *http.Request) domain.Filter {
	q := r.URL.Query()
	return domain.Filter{Date: q.Get("date"), Query: q.Get("q")}
}

func writeAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
