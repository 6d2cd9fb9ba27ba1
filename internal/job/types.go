package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/transcript"
)

// JobType represents the kind of job
type JobType string

const (
	JobTranscribe JobType = "transcribe"
	JobExport     JobType = "export"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job represents a queued transcription or export of one session
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	SessionID   string          `json:"session_id"`
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"` // percent, 0-100
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TranscribeParams are parameters for a transcription job
type TranscribeParams struct {
	Language string `json:"language"` // "auto", "ko", "en", "ja", etc.
}

// ExportParams are parameters for an export job
type ExportParams struct {
	Settings pipeline.ExportSettings `json:"settings"`
}

// TranscribeResult is the output of a successful transcription
type TranscribeResult struct {
	Words    []transcript.Word `json:"words"`
	Language string            `json:"language"`
	Engine   string            `json:"engine"`
	Duration float64           `json:"duration"` // processing time in seconds
}

// ExportResult is the output of a successful export
type ExportResult struct {
	OutputPath string  `json:"output_path"`
	MimeType   string  `json:"mime_type"`
	Size       int64   `json:"size"`
	Duration   float64 `json:"duration"` // processing time in seconds
}

// JobHandler processes a job and returns its result. report forwards
// intermediate events to job subscribers.
type JobHandler func(ctx context.Context, job *Job, report func(progress.Event)) (any, error)
