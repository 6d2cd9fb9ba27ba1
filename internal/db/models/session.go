package models

import "time"

// Session is the persisted header of an editing session. Words and deletions
// are stored in their own tables.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	FileName  string    `json:"file_name"`
	VideoPath string    `json:"-"`
	Duration  float64   `json:"duration"`
	Language  string    `json:"language"`
	Position  float64   `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpeechBackend is a registered speech-to-text server.
type SpeechBackend struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	BackendType string `json:"backend_type"` // whisper.cpp, openai
	URL         string `json:"url"`
	APIKey      string `json:"-"`
	Model       string `json:"model"`
	Enabled     bool   `json:"enabled"`
	Priority    int    `json:"priority"`
	CreatedAt   string `json:"created_at"`
}
