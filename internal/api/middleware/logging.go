package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "http")

// silentPaths are high-frequency endpoints that are only logged on errors
// (status >= 400).
var silentPaths = map[string]bool{
	"/api/health": true,
}

// silentSuffixes match polled or streamed routes under a session or job.
var silentSuffixes = []string{"/playback", "/video", "/events"}

func isSilent(path string) bool {
	if silentPaths[path] {
		return true
	}
	for _, s := range silentSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// Logger logs one line per request through logrus.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if isSilent(r.URL.Path) && status < 400 {
			return
		}

		entry := logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		})
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			entry = entry.WithField("request_id", reqID)
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	})
}
