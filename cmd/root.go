package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/video-stream/transcut/internal/config"
	"github.com/video-stream/transcut/internal/ffmpeg"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "transcut",
	Short: "Cut videos by editing their transcript",
	Long: `Transcut transcribes a video into timed words and lets you cut the video
by deleting words from the transcript. It runs as an HTTP service with a job
queue, or offline for single exports and subtitle files.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./transcut.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(subtitlesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and applies the logging and ffmpeg
// settings every command shares.
func loadConfig() (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	config.ApplyLogging(cfg.Log)
	if cfg.FFmpeg.Bin != "" {
		ffmpeg.FFmpegBin = cfg.FFmpeg.Bin
	}
	if cfg.FFmpeg.ProbeBin != "" {
		ffmpeg.FFprobeBin = cfg.FFmpeg.ProbeBin
	}
	logrus.WithFields(logrus.Fields{"ffmpeg": ffmpeg.FFmpegBin, "ffprobe": ffmpeg.FFprobeBin}).Debug("tools configured")
	return loader, cfg, nil
}

// capabilities returns the encoders to use, probing the GPU only when enabled.
func capabilities(cfg *config.Config) *ffmpeg.HWCapabilities {
	if !cfg.FFmpeg.HWAccel {
		return ffmpeg.SoftwareCapabilities()
	}
	return ffmpeg.DetectHardware()
}
