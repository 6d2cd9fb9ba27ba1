package whisper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
)

var logger = logrus.WithField("component", "whisper")

// statusError is a non-2xx answer from a speech server.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Code, truncate(e.Body, 200))
}

// isOOMError checks if an error response indicates GPU out-of-memory
func isOOMError(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "oom") ||
		strings.Contains(lower, "memory") && strings.Contains(lower, "failed") ||
		strings.Contains(lower, "sycl") && strings.Contains(lower, "error")
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == 502 || se.Code == 503 || se.Code == 504
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "timeout")
}

// retryPolicy retries transient failures with exponential backoff and jitter.
type retryPolicy struct {
	name    string
	retries int
	base    time.Duration
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func (p retryPolicy) do(ctx context.Context, fn func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			logger.WithFields(logrus.Fields{"engine": p.name, "attempt": attempt, "backoff": wait}).
				Warn("retrying after transient error")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isOOMError(err.Error()) {
			return nil, &pipeline.Error{
				Kind:    pipeline.KindModelLoadFailed,
				Message: "The speech engine ran out of GPU memory. Try a smaller model.",
				Err:     err,
			}
		}
		if !isRetryableError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", p.name, p.retries+1, lastErr)
}

// NormalizeLanguage reduces a locale such as "en-US" to the ISO 639-1 code
// whisper expects. "" and "auto" mean detection.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == "auto" {
		return ""
	}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return base
	}
	if base, _, ok := strings.Cut(lang, "_"); ok {
		return base
	}
	return lang
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
