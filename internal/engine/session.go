package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/transcript"
)

var logger = logrus.WithField("component", "engine")

// QueueSize bounds the number of requests waiting for the worker.
const QueueSize = 64

var (
	ErrClosed  = errors.New("engine: session is not open")
	ErrBusy    = errors.New("engine: request queue is full")
	ErrPayload = errors.New("engine: unsupported request payload")
)

// Kind is the type of work a request carries.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindExport     Kind = "export"
)

// Result is the outcome of a finished call. Only the field matching the call's
// kind is set.
type Result struct {
	Words  []transcript.Word      `json:"words,omitempty"`
	Export *pipeline.EncodeResult `json:"export,omitempty"`
}

// Session owns the collaborators and runs one request at a time on a single
// worker goroutine. It must be opened before use and closed when done.
type Session struct {
	speech      *onceLoader
	transcriber *pipeline.Transcriber
	exporter    *pipeline.Exporter
	hub         *progress.Hub

	mu       sync.Mutex
	open     bool
	requests chan *Call
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a closed session around the three collaborators.
func New(extractor pipeline.AudioExtractor, speech pipeline.SpeechEngine, encoder pipeline.Encoder) *Session {
	loader := &onceLoader{SpeechEngine: speech}
	return &Session{
		speech:      loader,
		transcriber: pipeline.NewTranscriber(extractor, loader),
		exporter:    pipeline.NewExporter(encoder),
		hub:         progress.NewHub(),
	}
}

// Open loads the speech model and starts the worker. Calling Open on an open
// session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	if err := s.speech.Load(ctx); err != nil {
		return pipeline.NewError(pipeline.KindModelLoadFailed, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.requests = make(chan *Call, QueueSize)
	s.done = make(chan struct{})
	s.open = true
	go s.worker(s.requests, s.done)

	logger.WithField("speech", s.speech.Name()).Info("engine session opened")
	return nil
}

// Close stops accepting requests, cancels queued and running ones and waits
// for the worker to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	s.cancel()
	close(s.requests)
	done := s.done
	s.mu.Unlock()

	<-done
	logger.Info("engine session closed")
}

// Submit queues a request. payload must be a pipeline.TranscribeRequest or a
// pipeline.ExportRequest.
func (s *Session) Submit(payload any) (*Call, error) {
	var kind Kind
	switch payload.(type) {
	case pipeline.TranscribeRequest:
		kind = KindTranscribe
	case pipeline.ExportRequest:
		kind = KindExport
	default:
		return nil, fmt.Errorf("%w: %T", ErrPayload, payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	call := &Call{
		ID:      uuid.New().String(),
		Kind:    kind,
		payload: payload,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	call.events, call.unsubscribe = s.hub.Subscribe(call.ID)

	select {
	case s.requests <- call:
	default:
		cancel()
		call.unsubscribe()
		s.hub.Remove(call.ID)
		return nil, ErrBusy
	}

	logger.WithFields(logrus.Fields{"request_id": call.ID, "kind": kind}).Debug("request queued")
	return call, nil
}

func (s *Session) worker(requests <-chan *Call, done chan<- struct{}) {
	defer close(done)
	for call := range requests {
		s.run(call)
	}
}

func (s *Session) run(call *Call) {
	log := logger.WithFields(logrus.Fields{"request_id": call.ID, "kind": call.Kind})
	defer s.hub.Remove(call.ID)

	var (
		mu      sync.Mutex
		stage   = string(pipeline.StateIdle)
		percent float64
	)
	publish := func(ev progress.Event) {
		ev.RequestID = call.ID
		s.hub.Publish(ev)
	}
	obs := pipeline.Observer{
		Progress: func(p float64) {
			mu.Lock()
			percent = p
			ev := progress.Event{Stage: stage, Percent: p}
			mu.Unlock()
			publish(ev)
		},
		Partial: func(words []transcript.Word) {
			cp := make([]transcript.Word, len(words))
			copy(cp, words)
			mu.Lock()
			ev := progress.Event{Stage: stage, Percent: percent, Words: cp}
			mu.Unlock()
			publish(ev)
		},
		State: func(st pipeline.State) {
			mu.Lock()
			stage = string(st)
			ev := progress.Event{Stage: stage, Percent: percent}
			mu.Unlock()
			if !st.Terminal() {
				publish(ev)
			}
		},
	}

	var (
		res Result
		err error
	)
	if cerr := call.ctx.Err(); cerr != nil {
		err = pipeline.NewError(pipeline.KindCancelled, cerr)
	} else {
		log.Info("request started")
		switch p := call.payload.(type) {
		case pipeline.TranscribeRequest:
			res.Words, err = s.transcriber.Transcribe(call.ctx, p, obs)
		case pipeline.ExportRequest:
			res.Export, err = s.exporter.Export(call.ctx, p, obs)
		}
	}

	final := progress.Event{Stage: string(pipeline.StateComplete), Percent: 100, Final: true}
	if err != nil {
		mu.Lock()
		final.Percent = percent
		mu.Unlock()
		final.Stage = string(pipeline.StateFailed)
		final.Kind = string(pipeline.KindOf(err))
		final.Message = err.Error()
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			final.Message = pe.UserMessage()
		}
		log.WithError(err).Warn("request failed")
	} else {
		if res.Words != nil {
			final.Words = res.Words
		}
		log.Info("request complete")
	}
	publish(final)

	call.finish(res, err)
}

// onceLoader remembers a successful Load so the model is initialised once per
// session. A failed load is retried on the next call.
type onceLoader struct {
	pipeline.SpeechEngine
	mu     sync.Mutex
	loaded bool
}

func (l *onceLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	if err := l.SpeechEngine.Load(ctx); err != nil {
		return err
	}
	l.loaded = true
	return nil
}
