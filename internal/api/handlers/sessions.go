package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/storage"
)

type SessionHandler struct {
	sessions  *session.Manager
	library   *storage.Library
	maxUpload int64
}

func NewSessionHandler(sessions *session.Manager, library *storage.Library, maxUpload int64) *SessionHandler {
	return &SessionHandler{sessions: sessions, library: library, maxUpload: maxUpload}
}

// session loads the {id} session and checks the caller may edit it.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	return loadSession(h.sessions, w, r)
}

func loadSession(sessions *session.Manager, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	claims := middleware.GetClaims(r)
	if claims == nil || (claims.Role != "admin" && claims.UserID != s.OwnerID) {
		// don't reveal other users' sessions
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// Upload creates a session from a multipart "file" field.
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		jsonError(w, "expected multipart upload", http.StatusBadRequest)
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			jsonError(w, "missing file field", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		s, err := h.sessions.Create(r.Context(), claims.UserID, part.FileName(), part)
		part.Close()
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, s.Snapshot(), http.StatusCreated)
		return
	}
}

// CreateFromLibrary opens a session on a file in the media library.
func (h *SessionHandler) CreateFromLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	full, err := h.library.Resolve(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := middleware.GetClaims(r)
	s, err := h.sessions.CreateFromPath(r.Context(), claims.UserID, full)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, s.Snapshot(), http.StatusCreated)
}

// List returns the caller's sessions, or all sessions for admins.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	owner := claims.UserID
	if claims.Role == "admin" {
		owner = 0
	}
	list, err := h.sessions.List(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*models.Session{}
	}
	jsonResponse(w, list, http.StatusOK)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	jsonResponse(w, s.Snapshot(), http.StatusOK)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Delete(s.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// edit applies fn to the session, persists the result and answers with a
// fresh snapshot.
func (h *SessionHandler) edit(w http.ResponseWriter, r *http.Request, fn func(s *session.Session) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		writeError(w, err)
		return
	}
	if err := h.sessions.SaveEdits(s); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, s.Snapshot(), http.StatusOK)
}

// DeleteWord deletes the time span of one word.
func (h *SessionHandler) DeleteWord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.edit(w, r, func(s *session.Session) error {
		_, err := s.DeleteWord(req.Index)
		return err
	})
}

// DeleteWords deletes the span of words from index start to end inclusive.
func (h *SessionHandler) DeleteWords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start int  `json:"start"`
		End   *int `json:"end"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	end := req.Start
	if req.End != nil {
		end = *req.End
	}
	h.edit(w, r, func(s *session.Session) error {
		rng, err := s.DeleteWords(req.Start, end)
		if err == nil {
			logger.WithFields(logrus.Fields{"session": s.ID, "range": rng.String()}).Debug("words deleted")
		}
		return err
	})
}

// DeleteRange deletes a raw timeline span in seconds.
func (h *SessionHandler) DeleteRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.edit(w, r, func(s *session.Session) error {
		_, err := s.DeleteTimeRange(req.Start, req.End)
		return err
	})
}

func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(s *session.Session) error {
		s.Undo()
		return nil
	})
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(s *session.Session) error {
		s.ClearDeleted()
		return nil
	})
}

// Transcript returns the annotated words. With ?q= it also lists the words
// matching the query.
func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp := map[string]interface{}{
		"language": s.Language(),
		"words":    s.Snapshot().Words,
	}
	if q, ok := r.URL.Query()["q"]; ok {
		resp["query"] = q[0]
		resp["matches"] = s.Search(q[0])
	}
	jsonResponse(w, resp, http.StatusOK)
}

// GetEDL downloads the edit decision list as YAML.
func (h *SessionHandler) GetEDL(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := session.MarshalEDL(s.EDL())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.ID+`.edl.yaml"`)
	w.Write(data)
}

// PutEDL replaces the session's deletions with an uploaded YAML list.
func (h *SessionHandler) PutEDL(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	edl, err := session.ParseEDL(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.edit(w, r, func(s *session.Session) error {
		s.ApplyEDL(edl)
		return nil
	})
}

// parseBool reads a query flag such as ?edited=1.
func parseBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
