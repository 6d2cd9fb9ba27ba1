package cmd

import (
	"testing"

	"github.com/video-stream/transcut/internal/config"
	"github.com/video-stream/transcut/internal/whisper"
)

func TestConfiguredBackends(t *testing.T) {
	tests := []struct {
		name    string
		sc      config.SpeechConfig
		first   string
		enabled [2]bool
	}{
		{
			name:    "whisper only",
			sc:      config.SpeechConfig{Primary: "whisper.cpp", WhisperURL: "http://w:8178", OpenAIKey: "sk"},
			first:   whisper.BackendWhisperCpp,
			enabled: [2]bool{true, false},
		},
		{
			name:    "openai with whisper fallback",
			sc:      config.SpeechConfig{Primary: "openai", Fallback: "whisper.cpp", WhisperURL: "http://w:8178", OpenAIKey: "sk"},
			first:   whisper.BackendOpenAI,
			enabled: [2]bool{true, true},
		},
		{
			name:    "openai without key",
			sc:      config.SpeechConfig{Primary: "openai"},
			first:   whisper.BackendOpenAI,
			enabled: [2]bool{false, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configuredBackends(tt.sc)
			if got[0].BackendType != tt.first || got[0].Priority != 0 || got[1].Priority != 1 {
				t.Fatalf("order = %+v", got)
			}
			if got[0].Enabled != tt.enabled[0] || got[1].Enabled != tt.enabled[1] {
				t.Errorf("enabled = %v, %v", got[0].Enabled, got[1].Enabled)
			}
		})
	}
}

func TestRegistryFromConfig(t *testing.T) {
	r, err := registryFromConfig(config.SpeechConfig{
		Primary: "whisper.cpp", Fallback: "openai", WhisperURL: "http://w:8178", OpenAIKey: "sk",
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != "backend:1+backend:2" {
		t.Errorf("name = %q", r.Name())
	}

	if _, err := registryFromConfig(config.SpeechConfig{Primary: "openai"}); err == nil {
		t.Error("expected error without usable backends")
	}
}
