package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/video-stream/transcut/internal/engine"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/session"
)

// Submitter queues work on an engine session. *engine.Session implements it.
type Submitter interface {
	Submit(payload any) (*engine.Call, error)
}

// SpeechNamer reports which speech engine produced a transcript.
type SpeechNamer interface {
	Name() string
}

// NewTranscribeHandler transcribes a session's video and stores the words on
// the session.
func NewTranscribeHandler(eng Submitter, sessions *session.Manager, speech SpeechNamer) JobHandler {
	return func(ctx context.Context, job *Job, report func(progress.Event)) (any, error) {
		var params TranscribeParams
		if err := json.Unmarshal(job.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		s, err := sessions.Get(job.SessionID)
		if err != nil {
			return nil, err
		}

		started := time.Now()
		res, err := runCall(ctx, eng, pipeline.TranscribeRequest{Source: s.VideoPath, Language: params.Language}, report)
		if err != nil {
			return nil, err
		}

		name := ""
		if speech != nil {
			name = speech.Name()
		}
		language := params.Language
		if language == "auto" {
			language = ""
		}
		if err := sessions.SaveTranscript(s, res.Words, language, name); err != nil {
			return nil, err
		}
		return &TranscribeResult{
			Words:    res.Words,
			Language: s.Language(),
			Engine:   name,
			Duration: time.Since(started).Seconds(),
		}, nil
	}
}

// NewExportHandler renders the session's current edit.
func NewExportHandler(eng Submitter, sessions *session.Manager) JobHandler {
	return func(ctx context.Context, job *Job, report func(progress.Event)) (any, error) {
		var params ExportParams
		if err := json.Unmarshal(job.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		s, err := sessions.Get(job.SessionID)
		if err != nil {
			return nil, err
		}

		started := time.Now()
		res, err := runCall(ctx, eng, s.ExportRequest(params.Settings), report)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			OutputPath: res.Export.Path,
			MimeType:   res.Export.MimeType,
			Size:       res.Export.Size,
			Duration:   time.Since(started).Seconds(),
		}, nil
	}
}

// runCall submits payload and forwards the call's events until it finishes.
// Cancelling ctx cancels the call.
func runCall(ctx context.Context, eng Submitter, payload any, report func(progress.Event)) (engine.Result, error) {
	call, err := eng.Submit(payload)
	if err != nil {
		return engine.Result{}, err
	}

	events := call.Events()
	for events != nil {
		select {
		case <-ctx.Done():
			call.Cancel()
			ctx = context.Background()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			report(ev)
		}
	}
	return call.Wait()
}
