package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/transcript"
)

type SubtitleHandler struct {
	sessions *session.Manager
}

func NewSubtitleHandler(sessions *session.Manager) *SubtitleHandler {
	return &SubtitleHandler{sessions: sessions}
}

// Serve renders the session transcript as SRT or VTT. With ?edited=1 the
// deleted words are dropped and timings follow the cut video.
func (h *SubtitleHandler) Serve(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}

	format := strings.ToLower(chi.URLParam(r, "format"))
	edited := parseBool(r, "edited")
	words := s.Subtitles(edited)

	var body, contentType string
	switch format {
	case "srt":
		body, contentType = transcript.FormatSRT(words), "application/x-subrip"
	case "vtt":
		body, contentType = transcript.FormatVTT(words), "text/vtt"
	default:
		jsonError(w, "format must be srt or vtt", http.StatusBadRequest)
		return
	}

	name := strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName))
	if edited {
		name += ".edited"
	}
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+"."+format+`"`)
	w.Write([]byte(body))
}
