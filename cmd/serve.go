package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/video-stream/transcut/internal/api"
	"github.com/video-stream/transcut/internal/api/middleware"
	"github.com/video-stream/transcut/internal/auth"
	"github.com/video-stream/transcut/internal/config"
	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/engine"
	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/job"
	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/storage"
	"github.com/video-stream/transcut/internal/whisper"
)

const (
	shutdownTimeout = 15 * time.Second
	tokenTTL        = 24 * time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logrus.WithField("component", "serve")

	tmpDir := filepath.Join(cfg.DataPath, "tmp")
	for _, dir := range []string{cfg.DataPath, cfg.ExportPath, tmpDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if err := database.SeedSpeechBackends(configuredBackends(cfg.Speech)); err != nil {
		return fmt.Errorf("seed speech backends: %w", err)
	}
	if database.GetSetting("speech_language", "") == "" && cfg.Speech.Language != "" {
		database.SetSetting("speech_language", cfg.Speech.Language)
	}

	uploads, err := storage.NewUploads(cfg.UploadPath)
	if err != nil {
		return err
	}
	sessions := session.NewManager(database, uploads, session.ProbeVideo)

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	speech := whisper.NewRegistry()
	syncSpeech := func() {
		c := current.Load()
		backends, err := database.ListSpeechBackends()
		if err != nil {
			log.WithError(err).Error("failed to list speech backends")
			return
		}
		err = speech.Sync(backends,
			database.GetSetting("speech_primary", ""),
			database.GetSetting("speech_fallback", ""),
			database.GetSetting("openai_api_key", c.Speech.OpenAIKey),
			c.Speech.ChunkSeconds)
		if err != nil {
			log.WithError(err).Warn("speech backends incomplete")
		}
	}
	syncSpeech()

	caps := capabilities(cfg)
	log.WithFields(logrus.Fields{"hwaccel": caps.HWAccel, "h264": caps.H264.Encoder, "vp9": caps.VP9.Encoder}).Info("encoders selected")

	eng := engine.New(ffmpeg.NewExtractor(tmpDir), speech, ffmpeg.NewEncoder(cfg.ExportPath, caps))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go openEngine(ctx, eng)
	defer eng.Close()

	queue := job.NewJobQueue(database.DB())
	queue.RegisterHandler(job.JobTranscribe, job.NewTranscribeHandler(eng, sessions, speech))
	queue.RegisterHandler(job.JobExport, job.NewExportHandler(eng, sessions))
	queue.Start()
	defer queue.Stop()

	limiter := middleware.NewRateLimiter(10, time.Minute)
	defer limiter.Stop()

	router := api.NewRouter(api.Deps{
		DB:            database,
		JWT:           auth.NewJWTService(cfg.JWTSecret, tokenTTL),
		Config:        cfg,
		Jobs:          queue,
		Sessions:      sessions,
		Library:       storage.NewLibrary(cfg.MediaPath),
		LoginLimiter:  limiter,
		Caps:          caps,
		SpeechName:    speech.Name,
		SpeechChanged: syncSpeech,
	})

	loader.Watch(func(next *config.Config) {
		config.ApplyLogging(next.Log)
		prev := current.Swap(next)
		if next.Port != prev.Port || next.DataPath != prev.DataPath || next.MediaPath != prev.MediaPath {
			log.Warn("port and path changes take effect after a restart")
		}
		if next.Speech != prev.Speech {
			syncSpeech()
		}
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "media": cfg.MediaPath, "data": cfg.DataPath}).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	return nil
}

// openEngine loads the speech model, retrying with backoff until it succeeds
// or ctx is done. Jobs submitted before then fail with engine.ErrClosed.
func openEngine(ctx context.Context, eng *engine.Session) {
	log := logrus.WithField("component", "serve")
	wait := 5 * time.Second
	for {
		err := eng.Open(ctx)
		if err == nil {
			return
		}
		log.WithError(err).WithField("retry_in", wait).Warn("speech engine not ready")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait < time.Minute {
			wait *= 2
		}
	}
}
