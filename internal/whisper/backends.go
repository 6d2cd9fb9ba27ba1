package whisper

import (
	"fmt"
	"strconv"

	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/pipeline"
)

// Stored backend types.
const (
	BackendWhisperCpp = "whisper.cpp"
	BackendOpenAI     = "openai"
)

func ValidBackendType(t string) bool {
	return t == BackendWhisperCpp || t == BackendOpenAI
}

// BackendName is the registry name of a stored backend.
func BackendName(id int64) string {
	return "backend:" + strconv.FormatInt(id, 10)
}

// NewBackend builds the client for a stored backend. OpenAI backends without
// their own key use defaultKey.
func NewBackend(b models.SpeechBackend, defaultKey string, chunkSeconds int) (pipeline.SpeechEngine, error) {
	switch b.BackendType {
	case BackendWhisperCpp:
		if b.URL == "" {
			return nil, fmt.Errorf("backend %q: url is required", b.Name)
		}
		c := NewWhisperCppClient(b.URL, b.Model)
		c.ChunkSeconds = chunkSeconds
		return c, nil
	case BackendOpenAI:
		key := b.APIKey
		if key == "" {
			key = defaultKey
		}
		c := NewOpenAIClient(b.URL, key, b.Model)
		c.ChunkSeconds = chunkSeconds
		return c, nil
	default:
		return nil, fmt.Errorf("backend %q: unknown type %q", b.Name, b.BackendType)
	}
}

// Sync replaces the registry's engines with the enabled backends. primary and
// fallback are BackendName values; unset ones follow backend priority.
// Backends that cannot be built are skipped and reported in the error.
func (r *Registry) Sync(backends []models.SpeechBackend, primary, fallback, defaultKey string, chunkSeconds int) error {
	engines := make(map[string]pipeline.SpeechEngine)
	order := []string{primary, fallback}
	var firstErr error
	for _, b := range backends {
		if !b.Enabled {
			continue
		}
		e, err := NewBackend(b, defaultKey, chunkSeconds)
		if err != nil {
			logger.WithError(err).Warn("skipping speech backend")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		name := BackendName(b.ID)
		engines[name] = e
		order = append(order, name)
	}
	r.Replace(engines, order...)
	if len(engines) == 0 {
		return fmt.Errorf("no enabled speech backends")
	}
	return firstErr
}
