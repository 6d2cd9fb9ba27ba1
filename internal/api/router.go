package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/video-stream/transcut/internal/api/handlers"
	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/auth"
	"github.com/video-stream/transcut/internal/config"
	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/job"
	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/storage"
)

// MaxJSONBody limits JSON and YAML request bodies.
const MaxJSONBody = 4 << 20

// Deps are the services the HTTP surface is built on.
type Deps struct {
	DB           *db.Database
	JWT          *auth.JWTService
	Config       *config.Config
	Jobs         *job.JobQueue
	Sessions     *session.Manager
	Library      *storage.Library
	LoginLimiter *middleware.RateLimiter

	// Caps are the encoders in use; nil means software only.
	Caps *ffmpeg.HWCapabilities

	// SpeechName reports the active speech engines for the admin view.
	SpeechName func() string

	// SpeechChanged runs after speech backends or speech settings change.
	SpeechChanged func()
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(d.Config.CORSOrigins))

	if d.LoginLimiter == nil {
		d.LoginLimiter = middleware.NewRateLimiter(10, time.Minute)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(d.DB, d.JWT)
	sessionHandler := handlers.NewSessionHandler(d.Sessions, d.Library, d.Config.MaxUploadBytes)
	streamHandler := handlers.NewStreamHandler(d.Sessions, d.Caps)
	subtitleHandler := handlers.NewSubtitleHandler(d.Sessions)
	jobHandler := handlers.NewJobHandler(d.Jobs, d.Sessions, d.DB)
	filesHandler := handlers.NewFilesHandler(d.Library)
	presetsHandler := handlers.NewPresetsHandler(d.Sessions)
	settingsHandler := handlers.NewSettingsHandler(d.DB, func(keys []string) {
		for _, k := range keys {
			if k == "speech_primary" || k == "speech_fallback" || k == "openai_api_key" {
				if d.SpeechChanged != nil {
					d.SpeechChanged()
				}
				return
			}
		}
	})
	backendsHandler := handlers.NewSpeechBackendsHandler(d.DB, d.SpeechChanged)
	adminHandler := handlers.NewAdminHandler(d.DB, d.LoginLimiter, d.Caps, d.SpeechName)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Auth (public)
		r.With(d.LoginLimiter.Handler, middleware.MaxBodySize(MaxJSONBody)).Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWT))
			r.Use(middleware.MaxBodySize(MaxJSONBody))

			r.Get("/auth/me", authHandler.Me)

			// Sessions
			r.Post("/sessions", sessionHandler.Upload)
			r.Post("/sessions/library", sessionHandler.CreateFromLibrary)
			r.Get("/sessions", sessionHandler.List)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)

				r.Post("/delete/word", sessionHandler.DeleteWord)
				r.Post("/delete/words", sessionHandler.DeleteWords)
				r.Post("/delete/range", sessionHandler.DeleteRange)
				r.Post("/undo", sessionHandler.Undo)
				r.Post("/clear", sessionHandler.Clear)

				r.Get("/transcript", sessionHandler.Transcript)
				r.Get("/subtitles.{format}", subtitleHandler.Serve)
				r.Get("/edl", sessionHandler.GetEDL)
				r.Put("/edl", sessionHandler.PutEDL)

				r.Get("/playback", streamHandler.Position)
				r.Put("/playback", streamHandler.Seek)
				r.Get("/video", streamHandler.Video)
				r.Get("/frame", streamHandler.Frame)

				r.Post("/transcribe", jobHandler.Transcribe)
				r.Post("/export", jobHandler.Export)
				r.Get("/jobs", jobHandler.SessionJobs)
			})

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Delete("/jobs/{id}", jobHandler.CancelJob)
			r.Get("/jobs/{id}/events", jobHandler.Events)
			r.Get("/jobs/{id}/download", jobHandler.Download)

			// Export options
			r.Get("/export/presets", presetsHandler.ExportPresets)

			// Media library
			r.Get("/library/tree", filesHandler.GetTree)
			r.Get("/library/tree/*", filesHandler.GetTree)
			r.Get("/library/info/*", filesHandler.GetInfo)
			r.Get("/library/search", filesHandler.Search)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Get("/settings", settingsHandler.GetSettings)
				r.Put("/settings", settingsHandler.UpdateSettings)

				r.Get("/speech-backends", backendsHandler.ListBackends)
				r.Post("/speech-backends", backendsHandler.CreateBackend)
				r.Put("/speech-backends/{id}", backendsHandler.UpdateBackend)
				r.Delete("/speech-backends/{id}", backendsHandler.DeleteBackend)
				r.Get("/speech-backends/{id}/health", backendsHandler.HealthCheck)

				r.Get("/admin/users", adminHandler.ListUsers)
				r.Post("/admin/users", adminHandler.CreateUser)
				r.Put("/admin/users/{id}/password", adminHandler.ChangePassword)
				r.Delete("/admin/users/{id}", adminHandler.DeleteUser)
				r.Get("/admin/ratelimit", adminHandler.RateLimits)
				r.Delete("/admin/ratelimit", adminHandler.ClearRateLimits)
				r.Get("/admin/system", adminHandler.System)
			})
		})
	})

	return r
}
