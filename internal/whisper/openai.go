package whisper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/transcript"
)

const (
	DefaultOpenAIURL   = "https://api.openai.com"
	DefaultOpenAIModel = "whisper-1"
)

// OpenAIClient uses the OpenAI transcription API or any server that speaks
// the same protocol, such as an OpenVINO GenAI whisper server.
type OpenAIClient struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	retry        retryPolicy
	ChunkSeconds int
	Strategies   []Strategy
}

// NewOpenAIClient creates a client. An empty baseURL targets the OpenAI API
// and an empty model selects whisper-1.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		retry: retryPolicy{name: "openai", retries: 3, base: 2 * time.Second},
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

// Load verifies the client is usable. The hosted API needs a key; a
// self-hosted server is only checked when a request is made.
func (c *OpenAIClient) Load(ctx context.Context) error {
	if c.baseURL == DefaultOpenAIURL && c.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}
	return ctx.Err()
}

// Transcribe uploads the audio in chunks and requests word and segment
// timestamps.
func (c *OpenAIClient) Transcribe(ctx context.Context, req pipeline.SpeechRequest,
	onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error) {

	send := func(ctx context.Context, path, lang string) (*Response, error) {
		return c.retry.do(ctx, func() (*Response, error) {
			return c.send(ctx, path, lang)
		})
	}
	return transcribeChunked(ctx, c.Name(), req.AudioPath, NormalizeLanguage(req.Language),
		c.ChunkSeconds, c.Strategies, send, onProgress, onPartial)
}

func (c *OpenAIClient) send(ctx context.Context, audioPath, language string) (*Response, error) {
	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	if language != "" {
		fields["language"] = language
	}
	granularities := map[string][]string{
		"timestamp_granularities[]": {"word", "segment"},
	}
	return postAudio(ctx, c.httpClient, c.baseURL+"/v1/audio/transcriptions", c.apiKey, audioPath, fields, granularities)
}
