package handlers

import (
	"net/http"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/session"
)

type PresetsHandler struct {
	sessions *session.Manager
}

func NewPresetsHandler(sessions *session.Manager) *PresetsHandler {
	return &PresetsHandler{sessions: sessions}
}

// ExportPresets returns the export formats, quality and resolution tiers.
// With ?session= the resolutions are limited to those below the source height.
func (h *PresetsHandler) ExportPresets(w http.ResponseWriter, r *http.Request) {
	var info *ffmpeg.MediaInfo
	if id := r.URL.Query().Get("session"); id != "" {
		s, err := h.sessions.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		// Return default presets if probe fails
		info, _ = ffmpeg.Probe(r.Context(), s.VideoPath)
	}
	jsonResponse(w, ffmpeg.GeneratePresets(info), http.StatusOK)
}
