package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/session"
	"github.com/video-stream/transcut/internal/transcript"
)

var (
	subtitlesOutput   string
	subtitlesFormat   string
	subtitlesLanguage string
	subtitlesEDL      string
)

var subtitlesCmd = &cobra.Command{
	Use:   "subtitles <video>",
	Short: "Transcribe a video into word-level SRT or WebVTT subtitles",
	Long: `Subtitles transcribes a video with the configured speech backends and
writes one cue per word. With --edl the deleted words are dropped and the rest
are retimed to match the exported cut.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubtitles,
}

func init() {
	subtitlesCmd.Flags().StringVarP(&subtitlesOutput, "output", "o", "", "output file (default <video>.<format>)")
	subtitlesCmd.Flags().StringVarP(&subtitlesFormat, "format", "f", "srt", "srt or vtt")
	subtitlesCmd.Flags().StringVarP(&subtitlesLanguage, "language", "l", "", "spoken language, auto to detect (default from config)")
	subtitlesCmd.Flags().StringVarP(&subtitlesEDL, "edl", "e", "", "edit decision list to apply (YAML)")
}

func runSubtitles(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source := args[0]

	format := strings.ToLower(subtitlesFormat)
	if format != "srt" && format != "vtt" {
		return fmt.Errorf("format must be srt or vtt, got %q", subtitlesFormat)
	}
	language := subtitlesLanguage
	if language == "" {
		language = cfg.Speech.Language
	}

	var edl *session.EDL
	if subtitlesEDL != "" {
		data, err := os.ReadFile(subtitlesEDL)
		if err != nil {
			return fmt.Errorf("read edl: %w", err)
		}
		parsed, err := session.ParseEDL(data)
		if err != nil {
			return err
		}
		edl = &parsed
	}

	speech, err := registryFromConfig(cfg.Speech)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := speech.Load(ctx); err != nil {
		return pipeline.NewError(pipeline.KindModelLoadFailed, err)
	}
	transcriber := pipeline.NewTranscriber(ffmpeg.NewExtractor(""), speech)
	words, err := transcriber.Transcribe(ctx, pipeline.TranscribeRequest{Source: source, Language: language}, consoleObserver(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	if edl != nil {
		info, err := ffmpeg.Probe(ctx, source)
		if err != nil {
			return fmt.Errorf("probe %s: %w", source, err)
		}
		s := session.New("", filepath.Base(source), source, info.DurationSeconds())
		s.SetTranscript(words, "")
		s.ApplyEDL(*edl)
		words = s.Subtitles(true)
	}

	var out string
	if format == "vtt" {
		out = transcript.FormatVTT(words)
	} else {
		out = transcript.FormatSRT(words)
	}

	output := subtitlesOutput
	if output == "" {
		output = strings.TrimSuffix(source, filepath.Ext(source)) + "." + format
	}
	if err := os.WriteFile(output, []byte(out), 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d words to %s using %s\n", len(words), output, speech.Name())
	return nil
}
