package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/job"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/storage"
)

var logger = logrus.WithField("component", "api")

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}

// decodeJSON reads the request body into v and answers 400 or 413 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// kindStatus maps pipeline failure kinds to HTTP statuses.
var kindStatus = map[pipeline.Kind]int{
	pipeline.KindUnsupportedFileType: http.StatusUnsupportedMediaType,
	pipeline.KindEmptyExportResult:   http.StatusUnprocessableEntity,
	pipeline.KindNoSpeechDetected:    http.StatusUnprocessableEntity,
	pipeline.KindModelLoadFailed:     http.StatusBadGateway,
	pipeline.KindCancelled:           http.StatusConflict,
}

// writeError answers with the status matching err. Pipeline failures carry
// their kind so clients can branch on it.
func writeError(w http.ResponseWriter, err error) {
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe):
		status, ok := kindStatus[pe.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		jsonResponse(w, map[string]string{"error": pe.UserMessage(), "kind": string(pe.Kind)}, status)
		return
	case errors.Is(err, session.ErrNotFound), errors.Is(err, job.ErrNotFound), errors.Is(err, db.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, session.ErrWordIndex), errors.Is(err, session.ErrInvalidRange):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrOutsideRoot):
		jsonError(w, "path outside media library", http.StatusForbidden)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	logger.WithError(err).Error("request failed")
	jsonError(w, "internal error", http.StatusInternalServerError)
}

// extractPath extracts and URL-decodes the wildcard path from chi router
func extractPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	// Clean any double slashes or trailing slashes
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	return decoded
}
