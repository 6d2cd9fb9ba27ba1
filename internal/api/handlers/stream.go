package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/session"
)

const maxFrameWidth = 1920

// StreamHandler serves source video to the editor player and resolves
// playhead positions against the deleted ranges.
type StreamHandler struct {
	sessions *session.Manager
	caps     *ffmpeg.HWCapabilities
}

// NewStreamHandler builds the handler. caps selects the frame decoder; nil
// decodes on the CPU.
func NewStreamHandler(sessions *session.Manager, caps *ffmpeg.HWCapabilities) *StreamHandler {
	return &StreamHandler{sessions: sessions, caps: caps}
}

// Video streams the session's source file with range support.
func (h *StreamHandler) Video(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}

	f, err := os.Open(s.VideoPath)
	if err != nil {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, filepath.Base(s.FileName), info.ModTime(), f)
}

type playbackRequest struct {
	Position float64 `json:"position"`
}

type playbackResponse struct {
	Position float64 `json:"position"`
	Skipped  bool    `json:"skipped"`
}

// Seek reports the playhead. When it falls inside a deleted range the answer
// carries the position playback should jump to.
func (h *StreamHandler) Seek(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}
	var req playbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Position < 0 {
		req.Position = 0
	}

	next, skipped := s.Seek(req.Position)
	if skipped {
		if err := h.sessions.SaveEdits(s); err != nil {
			logger.WithError(err).WithField("session", s.ID).Warn("failed to save playhead")
		}
	}
	jsonResponse(w, playbackResponse{Position: next, Skipped: skipped}, http.StatusOK)
}

// Position returns the stored playhead.
func (h *StreamHandler) Position(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}
	jsonResponse(w, playbackResponse{Position: s.Position()}, http.StatusOK)
}

// Frame returns a JPEG preview of the frame at ?t= seconds, or at the playhead
// when t is absent. ?width= scales it.
func (h *StreamHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}

	at := s.Position()
	if v := r.URL.Query().Get("t"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			jsonError(w, "t must be a non-negative number of seconds", http.StatusBadRequest)
			return
		}
		at = t
	}
	if d := s.Duration(); d > 0 && at >= d {
		jsonError(w, "t is past the end of the video", http.StatusBadRequest)
		return
	}
	width := ffmpeg.DefaultFrameWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxFrameWidth {
			jsonError(w, "width must be between 1 and 1920", http.StatusBadRequest)
			return
		}
		width = n
	}

	img, err := ffmpeg.Frame(r.Context(), s.VideoPath, at, width, h.caps)
	if err != nil {
		logger.WithError(err).WithField("session", s.ID).Warn("frame extraction failed")
		jsonError(w, "failed to extract frame", http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(img)
}
