package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/whisper"
)

type SpeechBackendsHandler struct {
	database *db.Database
	onChange func()
}

// NewSpeechBackendsHandler builds the handler. onChange, if set, runs after
// every successful write so the engine registry can be rebuilt.
func NewSpeechBackendsHandler(database *db.Database, onChange func()) *SpeechBackendsHandler {
	return &SpeechBackendsHandler{database: database, onChange: onChange}
}

func (h *SpeechBackendsHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

type backendRequest struct {
	Name        string `json:"name"`
	BackendType string `json:"backend_type"`
	URL         string `json:"url"`
	APIKey      string `json:"api_key"`
	Model       string `json:"model"`
	Enabled     *bool  `json:"enabled"`
	Priority    *int   `json:"priority"`
}

type backendView struct {
	models.SpeechBackend
	Engine    string `json:"engine"`
	HasAPIKey bool   `json:"has_api_key"`
}

// ListBackends returns all registered speech backends (for Settings UI)
func (h *SpeechBackendsHandler) ListBackends(w http.ResponseWriter, r *http.Request) {
	backends, err := h.database.ListSpeechBackends()
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]backendView, len(backends))
	for i, b := range backends {
		views[i] = backendView{SpeechBackend: b, Engine: whisper.BackendName(b.ID), HasAPIKey: b.APIKey != ""}
	}
	jsonResponse(w, views, http.StatusOK)
}

func validateBackend(b *models.SpeechBackend) string {
	if b.Name == "" || b.BackendType == "" {
		return "name and backend_type are required"
	}
	if !whisper.ValidBackendType(b.BackendType) {
		return "backend_type must be one of: whisper.cpp, openai"
	}
	// Local backends require a URL
	if b.BackendType == whisper.BackendWhisperCpp && b.URL == "" {
		return "url is required for whisper.cpp backends"
	}
	return ""
}

// CreateBackend adds a new speech backend
func (h *SpeechBackendsHandler) CreateBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b := models.SpeechBackend{
		Name:        req.Name,
		BackendType: req.BackendType,
		URL:         req.URL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if req.Priority != nil {
		b.Priority = *req.Priority
	}
	if msg := validateBackend(&b); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.database.CreateSpeechBackend(&b)
	if err != nil {
		writeError(w, err)
		return
	}
	h.changed()

	jsonResponse(w, map[string]interface{}{
		"id":     id,
		"name":   b.Name,
		"engine": whisper.BackendName(id),
	}, http.StatusCreated)
}

func backendID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid backend ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// UpdateBackend modifies an existing speech backend
func (h *SpeechBackendsHandler) UpdateBackend(w http.ResponseWriter, r *http.Request) {
	id, ok := backendID(w, r)
	if !ok {
		return
	}
	var req backendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Get current backend to merge with updates
	existing, err := h.database.GetSpeechBackend(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.BackendType != "" {
		existing.BackendType = req.BackendType
	}
	if req.URL != "" || req.BackendType == whisper.BackendOpenAI {
		existing.URL = req.URL
	}
	if req.Model != "" {
		existing.Model = req.Model
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		existing.Priority = *req.Priority
	}
	// empty keeps the stored key
	existing.APIKey = req.APIKey
	if msg := validateBackend(existing); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.database.UpdateSpeechBackend(existing); err != nil {
		writeError(w, err)
		return
	}
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBackend removes a speech backend
func (h *SpeechBackendsHandler) DeleteBackend(w http.ResponseWriter, r *http.Request) {
	id, ok := backendID(w, r)
	if !ok {
		return
	}
	if err := h.database.DeleteSpeechBackend(id); err != nil {
		writeError(w, err)
		return
	}
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

type HealthResult struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck loads the backend's model to test connectivity
func (h *SpeechBackendsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := backendID(w, r)
	if !ok {
		return
	}
	backend, err := h.database.GetSpeechBackend(id)
	if err != nil {
		writeError(w, err)
		return
	}

	engine, err := whisper.NewBackend(*backend, h.database.GetSetting("openai_api_key", ""), 0)
	if err != nil {
		jsonResponse(w, HealthResult{Error: err.Error()}, http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := engine.Load(ctx); err != nil {
		jsonResponse(w, HealthResult{Error: err.Error()}, http.StatusOK)
		return
	}
	jsonResponse(w, HealthResult{OK: true, LatencyMs: time.Since(start).Milliseconds()}, http.StatusOK)
}
