package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a terminal pipeline failure.
type Kind string

const (
	KindExtractionFailed    Kind = "extraction_failed"
	KindModelLoadFailed     Kind = "model_load_failed"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindNoSpeechDetected    Kind = "no_speech_detected"
	KindEncodingFailed      Kind = "encoding_failed"
	KindEmptyExportResult   Kind = "empty_export_result"
	KindUnsupportedFileType Kind = "unsupported_file_type"
	KindCancelled           Kind = "cancelled"
)

// Sentinels for errors.Is.
var (
	ErrExtractionFailed    = &Error{Kind: KindExtractionFailed}
	ErrModelLoadFailed     = &Error{Kind: KindModelLoadFailed}
	ErrTranscription       = &Error{Kind: KindTranscriptionFailed}
	ErrNoSpeech            = &Error{Kind: KindNoSpeechDetected}
	ErrEncodingFailed      = &Error{Kind: KindEncodingFailed}
	ErrEmptyExport         = &Error{Kind: KindEmptyExportResult}
	ErrUnsupportedFileType = &Error{Kind: KindUnsupportedFileType}
	ErrCancelled           = &Error{Kind: KindCancelled}
)

var defaultMessages = map[Kind]string{
	KindExtractionFailed:    "Could not read the audio track of this video.",
	KindModelLoadFailed:     "The speech recognition engine could not be loaded.",
	KindTranscriptionFailed: "The speech recognition engine stopped before finishing.",
	KindNoSpeechDetected:    "No speech was detected in this video.",
	KindEncodingFailed:      "The video could not be encoded.",
	KindEmptyExportResult:   "Nothing is left to export: every part of the video is deleted.",
	KindUnsupportedFileType: "This file type is not supported. Upload a video file.",
	KindCancelled:           "The operation was cancelled.",
}

// Error is a terminal, user-facing pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so sentinels compare equal to any error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// UserMessage returns the message without the wrapped cause.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessages[e.Kind]
}

// NewError builds an Error of kind k wrapping err. Context cancellation is
// reported as KindCancelled, and an err that already carries a kind keeps it.
func NewError(k Kind, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, Err: err}
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: k, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
