package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/job"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/session"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// Auth is checked by the middleware before the upgrade, so any origin is
// accepted here.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type JobHandler struct {
	queue    *job.JobQueue
	sessions *session.Manager
	db       *db.Database
}

func NewJobHandler(queue *job.JobQueue, sessions *session.Manager, database *db.Database) *JobHandler {
	return &JobHandler{queue: queue, sessions: sessions, db: database}
}

// Transcribe queues a transcription of the session's video.
func (h *JobHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}
	var params job.TranscribeParams
	if r.ContentLength != 0 && !decodeJSON(w, r, &params) {
		return
	}
	if params.Language == "" {
		params.Language = h.db.GetSetting("speech_language", "auto")
	}

	j, err := h.queue.Enqueue(job.JobTranscribe, s.ID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.WithFields(logrus.Fields{"job": j.ID, "session": s.ID, "language": params.Language}).Info("transcription queued")
	jsonResponse(w, j, http.StatusAccepted)
}

// Export queues an export of the session's kept ranges.
func (h *JobHandler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}
	var settings pipeline.ExportSettings
	if r.ContentLength != 0 && !decodeJSON(w, r, &settings) {
		return
	}
	settings = h.exportDefaults(settings).WithDefaults()
	if err := settings.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	// nothing deleted exports the whole video
	edited := s.Edited()
	if edited && s.Duration() > 0 && len(s.Keep()) == 0 {
		writeError(w, pipeline.ErrEmptyExport)
		return
	}

	j, err := h.queue.Enqueue(job.JobExport, s.ID, job.ExportParams{Settings: settings})
	if err != nil {
		writeError(w, err)
		return
	}
	logger.WithFields(logrus.Fields{"job": j.ID, "session": s.ID, "format": settings.Format, "edited": edited}).Info("export queued")
	jsonResponse(w, j, http.StatusAccepted)
}

// exportDefaults fills unset fields from the stored settings.
func (h *JobHandler) exportDefaults(s pipeline.ExportSettings) pipeline.ExportSettings {
	if s.Format == "" {
		s.Format = pipeline.Format(h.db.GetSetting("export_format", ""))
	}
	if s.Quality == "" {
		s.Quality = pipeline.Quality(h.db.GetSetting("export_quality", ""))
	}
	if s.Resolution == "" {
		s.Resolution = pipeline.Resolution(h.db.GetSetting("export_resolution", ""))
	}
	return s
}

// SessionJobs lists the jobs of one session.
func (h *JobHandler) SessionJobs(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(h.sessions, w, r)
	if !ok {
		return
	}
	jobs, err := h.queue.ListJobs(s.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, jobs, http.StatusOK)
}

// ListJobs returns all jobs visible to the caller
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.queue.ListJobs(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	claims := middleware.GetClaims(r)
	if claims.Role != "admin" {
		visible := jobs[:0]
		for _, j := range jobs {
			if s, err := h.sessions.Get(j.SessionID); err == nil && s.OwnerID == claims.UserID {
				visible = append(visible, j)
			}
		}
		jobs = visible
	}
	jsonResponse(w, jobs, http.StatusOK)
}

// jobOf loads the {id} job and checks the caller owns its session.
func (h *JobHandler) jobOf(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	j, err := h.queue.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	claims := middleware.GetClaims(r)
	if claims.Role == "admin" {
		return j, true
	}
	s, err := h.sessions.Get(j.SessionID)
	if err != nil || s.OwnerID != claims.UserID {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	return j, true
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.jobOf(w, r)
	if !ok {
		return
	}
	jsonResponse(w, j, http.StatusOK)
}

// CancelJob cancels a pending or running job
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.jobOf(w, r)
	if !ok {
		return
	}
	if j.Status.Terminal() {
		jsonError(w, "job already finished", http.StatusConflict)
		return
	}
	if err := h.queue.CancelJob(j.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams job progress over a websocket until the final event.
func (h *JobHandler) Events(w http.ResponseWriter, r *http.Request) {
	j, ok := h.jobOf(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := logger.WithField("job", j.ID)

	events, unsubscribe := h.queue.Subscribe(j.ID)
	defer unsubscribe()

	// the job may have finished before the subscription
	if latest, err := h.queue.GetJob(j.ID); err == nil && latest.Status.Terminal() {
		writeFinal(conn, job.FinalEvent(latest))
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if latest, err := h.queue.GetJob(j.ID); err == nil && latest.Status.Terminal() {
					writeFinal(conn, job.FinalEvent(latest))
				}
				return
			}
			if ev.Final {
				writeFinal(conn, ev)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeFinal(conn *websocket.Conn, ev progress.Event) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(ev); err != nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ev.Stage),
		time.Now().Add(wsWriteTimeout))
}

// Download serves the output of a completed export job.
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	j, ok := h.jobOf(w, r)
	if !ok {
		return
	}
	if j.Type != job.JobExport || j.Status != job.StatusCompleted {
		jsonError(w, "no export output for this job", http.StatusConflict)
		return
	}
	var res job.ExportResult
	if err := json.Unmarshal(j.Result, &res); err != nil || res.OutputPath == "" {
		jsonError(w, "export result missing", http.StatusInternalServerError)
		return
	}

	f, err := os.Open(res.OutputPath)
	if errors.Is(err, os.ErrNotExist) {
		jsonError(w, "export output was removed", http.StatusGone)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	name := "export" + filepath.Ext(res.OutputPath)
	if s, err := h.sessions.Get(j.SessionID); err == nil {
		name = strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName)) + "_edited" + filepath.Ext(res.OutputPath)
	}
	if res.MimeType != "" {
		w.Header().Set("Content-Type", res.MimeType)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
