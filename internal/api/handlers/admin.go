package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/auth"
	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/gpu"
)

var validRoles = map[string]bool{"admin": true, "editor": true}

type AdminHandler struct {
	db         *db.Database
	limiter    *middleware.RateLimiter
	caps       *ffmpeg.HWCapabilities
	speechName func() string
}

func NewAdminHandler(db *db.Database, limiter *middleware.RateLimiter, caps *ffmpeg.HWCapabilities, speechName func() string) *AdminHandler {
	if caps == nil {
		caps = ffmpeg.SoftwareCapabilities()
	}
	return &AdminHandler{db: db, limiter: limiter, caps: caps, speechName: speechName}
}

// ListUsers returns all users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, users, http.StatusOK)
}

// CreateUser creates a new user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "editor"
	}
	if !validRoles[req.Role] {
		jsonError(w, "role must be one of: admin, editor", http.StatusBadRequest)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	id, err := h.db.CreateUser(req.Username, hashed, req.Role)
	if err != nil {
		jsonError(w, "failed to create user (username may already exist)", http.StatusConflict)
		return
	}

	jsonResponse(w, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role}, http.StatusCreated)
}

// ChangePassword sets a new password for a user
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		jsonError(w, "password is required", http.StatusBadRequest)
		return
	}
	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := h.db.UpdateUserPassword(id, hashed); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser removes a user
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	// Prevent self-deletion
	claims := middleware.GetClaims(r)
	if claims != nil && claims.UserID == id {
		jsonError(w, "cannot delete yourself", http.StatusBadRequest)
		return
	}

	// Prevent deleting the last admin
	user, err := h.db.GetUserByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user.Role == "admin" {
		count, err := h.db.CountAdmins()
		if err != nil {
			writeError(w, err)
			return
		}
		if count <= 1 {
			jsonError(w, "cannot delete the last admin", http.StatusBadRequest)
			return
		}
	}

	if err := h.db.DeleteUser(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RateLimits returns the login rate limiter state
func (h *AdminHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.limiter.Status(), http.StatusOK)
}

// ClearRateLimits unblocks every tracked IP
func (h *AdminHandler) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	h.limiter.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type systemInfo struct {
	Encoders *ffmpeg.HWCapabilities `json:"encoders"`
	GPU      *gpu.Info              `json:"gpu"`
	Speech   string                 `json:"speech"`
}

// System reports the selected encoders, the GPU and the active speech engines
func (h *AdminHandler) System(w http.ResponseWriter, r *http.Request) {
	info := systemInfo{Encoders: h.caps, GPU: gpu.Refresh()}
	if h.speechName != nil {
		info.Speech = h.speechName()
	}
	jsonResponse(w, info, http.StatusOK)
}
