package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paulgrammer/luminous/internal/jobs"
)

// JobResponse is the body of /generate and /preview responses.
type JobResponse struct {
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Message    string `json:"message,omitempty"`
}

// respondWithJSON writes the given payload as JSON with the provided status code.
// If encoding fails, it falls back to http.Error.
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

// respondWithError writes a standardized JSON error payload.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

// respondWithJobError maps job errors onto client-visible status codes.
func respondWithJobError(w http.ResponseWriter, err error) {
	var verr *jobs.ValidationError
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, jobs.ErrNotReady):
		respondWithError(w, http.StatusBadRequest, "Wallpaper not ready")
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrManagerStopped):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
