package handlers

import (
	"net/http"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/storage"
)

// FilesHandler browses the read-only media library sessions can be opened from.
type FilesHandler struct {
	library *storage.Library
}

func NewFilesHandler(library *storage.Library) *FilesHandler {
	return &FilesHandler{library: library}
}

func (h *FilesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if path == "" {
		path = "."
	}

	entries, err := h.library.List(path)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"path":    path,
		"entries": entries,
	}, http.StatusOK)
}

// GetInfo probes a library video.
func (h *FilesHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if !storage.IsVideoFile(path) {
		jsonError(w, "not a video file", http.StatusBadRequest)
		return
	}
	full, err := h.library.Resolve(path)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := ffmpeg.Probe(r.Context(), full)
	if err != nil {
		jsonError(w, "failed to probe file", http.StatusUnprocessableEntity)
		return
	}
	jsonResponse(w, info, http.StatusOK)
}

func (h *FilesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	results, err := h.library.Search(q, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"query":   q,
		"results": results,
	}, http.StatusOK)
}
