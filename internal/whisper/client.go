package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/transcript"
)

// WhisperCppClient talks to the whisper.cpp HTTP server (whisper-server)
type WhisperCppClient struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	retry        retryPolicy
	ChunkSeconds int
	Strategies   []Strategy
}

// NewWhisperCppClient creates a client for the whisper.cpp server. A non-empty
// model is loaded through the server's /load endpoint on Load.
func NewWhisperCppClient(baseURL, model string) *WhisperCppClient {
	return &WhisperCppClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // transcription can be very long
		},
		retry: retryPolicy{name: "whisper.cpp", retries: 2, base: 2 * time.Second},
	}
}

func (c *WhisperCppClient) Name() string {
	return "whisper.cpp"
}

// Load checks the server is reachable and switches it to the configured model.
func (c *WhisperCppClient) Load(ctx context.Context) error {
	if c.model != "" {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		w.WriteField("model", c.model)
		w.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/load", &buf)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("whisper server unreachable: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return &statusError{Code: resp.StatusCode, Body: string(body)}
		}
		logger.WithField("model", c.model).Info("whisper.cpp model loaded")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &statusError{Code: resp.StatusCode}
	}
	return nil
}

// Transcribe sends 16 kHz mono audio to whisper-server chunk by chunk.
func (c *WhisperCppClient) Transcribe(ctx context.Context, req pipeline.SpeechRequest,
	onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error) {

	send := func(ctx context.Context, path, lang string) (*Response, error) {
		return c.retry.do(ctx, func() (*Response, error) {
			return c.send(ctx, path, lang)
		})
	}
	return transcribeChunked(ctx, c.Name(), req.AudioPath, NormalizeLanguage(req.Language),
		c.ChunkSeconds, c.Strategies, send, onProgress, onPartial)
}

func (c *WhisperCppClient) send(ctx context.Context, audioPath, language string) (*Response, error) {
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if language != "" {
		fields["language"] = language
	}
	return postAudio(ctx, c.httpClient, c.baseURL+"/inference", "", audioPath, fields, nil)
}

// postAudio uploads audioPath as multipart "file" together with fields and
// decodes a verbose_json or WebVTT answer.
func postAudio(ctx context.Context, client *http.Client, url, apiKey, audioPath string,
	fields map[string]string, repeated map[string][]string) (*Response, error) {

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	for k, vs := range repeated {
		for _, v := range vs {
			writer.WriteField(k, v)
		}
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	logger.WithFields(logrus.Fields{"url": url, "audio": audioPath}).Debug("sending transcription request")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}
	return decodeResponse(body)
}

func decodeResponse(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("WEBVTT")) {
		return &Response{VTT: string(trimmed)}, nil
	}
	var r Response
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &r, nil
}
