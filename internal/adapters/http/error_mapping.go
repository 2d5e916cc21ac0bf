package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidFilterValue),
		domain.IsKind(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDatasetNotFound),
		domain.IsKind(err, domain.ErrProjectNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDatasetNotReady):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {"error": ...}. Not-ready errors also carry the dataset
// status; server errors hide their cause from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]string{"error": err.Error()}

	var notReady *domain.NotReadyError
	if errors.As(err, &notReady) {
		body["error"] = notReady.Error()
		body["status"] = string(notReady.Status)
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			body["error"] = "internal error"
		} else {
			body["error"] = "service temporarily unavailable"
		}
	}
	writeJSON(w, status, body)
}
