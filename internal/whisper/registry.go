package whisper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/transcript"
)

// Registry holds speech engines with a primary and an optional fallback.
// It is itself a pipeline.SpeechEngine.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]pipeline.SpeechEngine
	primary  string
	fallback string
	loaded   map[string]bool
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]pipeline.SpeechEngine),
		loaded:  make(map[string]bool),
	}
}

// Register adds an engine. The first registered engine becomes the primary.
func (r *Registry) Register(name string, e pipeline.SpeechEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = e
	delete(r.loaded, name)
	if r.primary == "" {
		r.primary = name
	}
}

// Remove drops an engine and clears it as primary or fallback.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, name)
	delete(r.loaded, name)
	if r.primary == name {
		r.primary = ""
	}
	if r.fallback == name {
		r.fallback = ""
	}
}

func (r *Registry) SetPrimary(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = name
}

func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (pipeline.SpeechEngine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

// Primary returns the primary engine, or nil if none is configured.
func (r *Registry) Primary() pipeline.SpeechEngine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[r.primary]
}

// Names returns the sorted names of all registered engines.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback != "" && r.fallback != r.primary {
		return r.primary + "+" + r.fallback
	}
	return r.primary
}

// Replace swaps the whole engine set. order names the primary first and the
// optional fallback second; unknown names are ignored.
func (r *Registry) Replace(engines map[string]pipeline.SpeechEngine, order ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines = engines
	r.loaded = make(map[string]bool)
	r.primary, r.fallback = "", ""
	for _, name := range order {
		if _, ok := engines[name]; !ok {
			continue
		}
		if r.primary == "" {
			r.primary = name
		} else if r.fallback == "" && name != r.primary {
			r.fallback = name
		}
	}
	logger.WithFields(logrus.Fields{"engines": len(engines), "primary": r.primary, "fallback": r.fallback}).Info("speech engines replaced")
}

// names returns the primary and fallback names under one lock. fallback is
// empty when unset or missing.
func (r *Registry) names() (string, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	primary, fallback := r.primary, r.fallback
	if _, ok := r.engines[primary]; !ok {
		primary = ""
	}
	if _, ok := r.engines[fallback]; !ok || fallback == primary {
		fallback = ""
	}
	return primary, fallback
}

// Load loads the primary engine, or the fallback when the primary fails.
func (r *Registry) Load(ctx context.Context) error {
	primary, fallback := r.names()
	if primary == "" {
		return fmt.Errorf("no primary speech engine configured")
	}

	err := r.ensureLoaded(ctx, primary)
	if err == nil || fallback == "" || ctx.Err() != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"engine": primary, "error": err}).Warn("primary speech engine failed to load, trying fallback")
	if fbErr := r.ensureLoaded(ctx, fallback); fbErr != nil {
		return fmt.Errorf("primary %q failed (%v), fallback %q also failed: %w", primary, err, fallback, fbErr)
	}
	return nil
}

// ensureLoaded loads the named engine unless it already is.
func (r *Registry) ensureLoaded(ctx context.Context, name string) error {
	r.mu.RLock()
	e, loaded := r.engines[name], r.loaded[name]
	r.mu.RUnlock()
	if e == nil {
		return fmt.Errorf("speech engine %q not registered", name)
	}
	if loaded {
		return nil
	}
	if err := e.Load(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.loaded[name] = true
	r.mu.Unlock()
	return nil
}

// Transcribe tries the primary engine first and falls back on error.
// Cancellation and an empty result are final. A primary that failed to load
// is retried before falling back. Partial results reach onPartial only while
// they grow, so a fallback restarting from zero stays silent until it has
// more words than were already delivered.
func (r *Registry) Transcribe(ctx context.Context, req pipeline.SpeechRequest,
	onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error) {

	primary, fallback := r.names()
	if primary == "" {
		return nil, fmt.Errorf("no primary speech engine configured")
	}
	if onPartial != nil {
		onPartial = (&growingPartials{next: onPartial}).forward
	}

	err := r.ensureLoaded(ctx, primary)
	if err == nil {
		var words []transcript.Word
		words, err = r.engine(primary).Transcribe(ctx, req, onProgress, onPartial)
		if err == nil || fallback == "" || !shouldFallback(ctx, err) {
			return words, err
		}
		logger.WithFields(logrus.Fields{"engine": primary, "error": err}).Warn("primary speech engine failed, trying fallback")
	} else if fallback == "" || ctx.Err() != nil {
		return nil, pipeline.NewError(pipeline.KindModelLoadFailed, err)
	}

	if lerr := r.ensureLoaded(ctx, fallback); lerr != nil {
		return nil, joinFallback(primary, fallback, err, lerr)
	}
	words, fbErr := r.engine(fallback).Transcribe(ctx, req, onProgress, onPartial)
	if fbErr != nil {
		return nil, joinFallback(primary, fallback, err, fbErr)
	}
	return words, nil
}

// growingPartials forwards a partial transcript only when it is longer than
// the last one forwarded.
type growingPartials struct {
	mu   sync.Mutex
	sent int
	next func([]transcript.Word)
}

func (g *growingPartials) forward(words []transcript.Word) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(words) <= g.sent {
		return
	}
	g.sent = len(words)
	g.next(words)
}

func (r *Registry) engine(name string) pipeline.SpeechEngine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[name]
}

func shouldFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, pipeline.ErrNoSpeech)
}

func joinFallback(primary, fallback string, primaryErr, fbErr error) error {
	if primaryErr == nil {
		return fbErr
	}
	return fmt.Errorf("primary %q failed (%v), fallback %q also failed: %w", primary, primaryErr, fallback, fbErr)
}
