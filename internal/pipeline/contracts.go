package pipeline

import (
	"context"
	"fmt"

	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/transcript"
)

// AudioExtractor turns a video file into 16 kHz mono PCM WAV.
// onProgress receives fractions in [0, 1].
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string, onProgress func(float64)) (audioPath string, err error)
}

// SpeechRequest is the input for one speech-engine run.
type SpeechRequest struct {
	AudioPath string
	Language  string // "" or "auto" for detection
}

// SpeechEngine recognises timed words in an audio file. onPartial receives the
// cumulative word list so far.
type SpeechEngine interface {
	Name() string
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, req SpeechRequest, onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error)
}

// Encoder cuts the kept ranges out of Source, joins them in order and encodes
// the result. It must fail loudly instead of returning an empty artifact.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest, onProgress func(float64)) (*EncodeResult, error)
}

// EncodeRequest describes one export.
type EncodeRequest struct {
	Source   string
	Keep     []segment.TimeRange
	Settings ExportSettings
}

// EncodeResult is the encoded artifact on disk.
type EncodeResult struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Format is the output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Quality selects an encoder tier.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// Resolution selects an output bounding box.
type Resolution string

const (
	ResolutionOriginal Resolution = "original"
	Resolution1080p    Resolution = "1080p"
	Resolution720p     Resolution = "720p"
	Resolution480p     Resolution = "480p"
	Resolution360p     Resolution = "360p"
)

// ExportSettings are the user-facing encode options.
type ExportSettings struct {
	Format     Format     `json:"format" yaml:"format"`
	Quality    Quality    `json:"quality" yaml:"quality"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
}

// DefaultExportSettings matches the editor defaults.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{Format: FormatMP4, Quality: QualityHigh, Resolution: ResolutionOriginal}
}

// WithDefaults fills empty fields.
func (s ExportSettings) WithDefaults() ExportSettings {
	d := DefaultExportSettings()
	if s.Format == "" {
		s.Format = d.Format
	}
	if s.Quality == "" {
		s.Quality = d.Quality
	}
	if s.Resolution == "" {
		s.Resolution = d.Resolution
	}
	return s
}

// Validate rejects unknown values.
func (s ExportSettings) Validate() error {
	switch s.Format {
	case FormatMP4, FormatWebM:
	default:
		return fmt.Errorf("unknown format %q", s.Format)
	}
	switch s.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("unknown quality %q", s.Quality)
	}
	switch s.Resolution {
	case ResolutionOriginal, Resolution1080p, Resolution720p, Resolution480p, Resolution360p:
	default:
		return fmt.Errorf("unknown resolution %q", s.Resolution)
	}
	return nil
}

// MimeType returns the container's media type.
func (f Format) MimeType() string {
	if f == FormatWebM {
		return "video/webm"
	}
	return "video/mp4"
}
