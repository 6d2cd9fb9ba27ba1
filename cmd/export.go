package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/session"
)

var (
	exportEDL        string
	exportOutput     string
	exportFormat     string
	exportQuality    string
	exportResolution string
)

var exportCmd = &cobra.Command{
	Use:   "export <video>",
	Short: "Render a video with the deletions of an edit decision list removed",
	Long: `Export cuts the ranges listed in a YAML edit decision list out of a video
and encodes what is left. Flags override the export settings stored in the
list.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportEDL, "edl", "e", "", "edit decision list (YAML)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <video>_edited.<format>)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "mp4 or webm")
	exportCmd.Flags().StringVar(&exportQuality, "quality", "", "high, medium or low")
	exportCmd.Flags().StringVar(&exportResolution, "resolution", "", "original, 1080p, 720p, 480p or 360p")
	exportCmd.MarkFlagRequired("edl")
}

// exportSettings merges flag values over the list's stored settings.
func exportSettings(edl session.EDL) (pipeline.ExportSettings, error) {
	var s pipeline.ExportSettings
	if edl.Export != nil {
		s = *edl.Export
	}
	if exportFormat != "" {
		s.Format = pipeline.Format(strings.ToLower(exportFormat))
	}
	if exportQuality != "" {
		s.Quality = pipeline.Quality(strings.ToLower(exportQuality))
	}
	if exportResolution != "" {
		s.Resolution = pipeline.Resolution(strings.ToLower(exportResolution))
	}
	s = s.WithDefaults()
	return s, s.Validate()
}

func runExport(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source := args[0]

	data, err := os.ReadFile(exportEDL)
	if err != nil {
		return fmt.Errorf("read edl: %w", err)
	}
	edl, err := session.ParseEDL(data)
	if err != nil {
		return err
	}
	settings, err := exportSettings(edl)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info, err := ffmpeg.Probe(ctx, source)
	if err != nil {
		return fmt.Errorf("probe %s: %w", source, err)
	}

	output := exportOutput
	if output == "" {
		ext := filepath.Ext(source)
		output = strings.TrimSuffix(source, ext) + "_edited." + string(settings.Format)
	}

	req := pipeline.ExportRequest{
		Source:        source,
		Deleted:       edl.Ranges(),
		TotalDuration: info.DurationSeconds(),
		Settings:      settings,
	}
	encoder := ffmpeg.NewEncoder(filepath.Dir(output), capabilities(cfg))
	res, err := pipeline.NewExporter(encoder).Export(ctx, req, consoleObserver(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	if err := os.Rename(res.Path, output); err != nil {
		return fmt.Errorf("move output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d kept segment(s) to %s (%d bytes)\n", len(pipeline.Keep(req)), output, res.Size)
	return nil
}

// consoleObserver prints stage changes and whole-percent progress.
func consoleObserver(w io.Writer) pipeline.Observer {
	last := -1
	return pipeline.Observer{
		State: func(st pipeline.State) {
			fmt.Fprintf(w, "%s\n", st)
		},
		Progress: func(p float64) {
			if int(p) != last {
				last = int(p)
				fmt.Fprintf(w, "\r%3d%%", last)
				if last == 100 {
					fmt.Fprintln(w)
				}
			}
		},
	}
}
