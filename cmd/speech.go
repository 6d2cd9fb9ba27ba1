package cmd

import (
	"github.com/video-stream/transcut/internal/config"
	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/whisper"
)

// configuredBackends turns the speech section of the config into backend
// records, primary first. The other backend is only enabled when it is named
// as the fallback.
func configuredBackends(sc config.SpeechConfig) []models.SpeechBackend {
	whisperCpp := models.SpeechBackend{
		Name:        "whisper.cpp",
		BackendType: whisper.BackendWhisperCpp,
		URL:         sc.WhisperURL,
		Model:       sc.WhisperModel,
		Enabled:     sc.WhisperURL != "",
	}
	openai := models.SpeechBackend{
		Name:        "OpenAI",
		BackendType: whisper.BackendOpenAI,
		URL:         sc.OpenAIURL,
		APIKey:      sc.OpenAIKey,
		Model:       sc.OpenAIModel,
		Enabled:     sc.OpenAIKey != "",
	}

	out := []models.SpeechBackend{whisperCpp, openai}
	if sc.Primary == whisper.BackendOpenAI {
		out = []models.SpeechBackend{openai, whisperCpp}
	}
	if sc.Fallback != out[1].BackendType {
		out[1].Enabled = false
	}
	for i := range out {
		out[i].Priority = i
	}
	return out
}

// registryFromConfig builds a speech registry straight from the config, for
// commands that run without the database.
func registryFromConfig(sc config.SpeechConfig) (*whisper.Registry, error) {
	backends := configuredBackends(sc)
	for i := range backends {
		backends[i].ID = int64(i + 1)
	}
	r := whisper.NewRegistry()
	if err := r.Sync(backends, "", "", sc.OpenAIKey, sc.ChunkSeconds); err != nil && r.Primary() == nil {
		return nil, err
	}
	return r, nil
}
