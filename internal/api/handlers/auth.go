package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/auth"
	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/db/models"
)

type AuthHandler struct {
	db  *db.Database
	jwt *auth.JWTService
}

func NewAuthHandler(db *db.Database, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login exchanges a username and password for a bearer token. Unknown users
// and wrong passwords get the same answer.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByUsername(req.Username)
	if err != nil || !auth.CheckPassword(req.Password, user.Password) {
		logger.WithField("username", req.Username).Warn("failed login")
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	issued := time.Now()
	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.WithField("username", user.Username).Info("login")

	jsonResponse(w, tokenResponse{
		Token:     token,
		ExpiresAt: issued.Add(h.jwt.TTL()).UTC(),
		User:      user,
	}, http.StatusOK)
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, user, http.StatusOK)
}
