package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/session"
)

func TestExportSettings(t *testing.T) {
	t.Cleanup(func() { exportFormat, exportQuality, exportResolution = "", "", "" })

	stored := &pipeline.ExportSettings{Format: pipeline.FormatWebM, Quality: pipeline.QualityLow}
	s, err := exportSettings(session.EDL{Export: stored})
	if err != nil {
		t.Fatal(err)
	}
	if s.Format != pipeline.FormatWebM || s.Quality != pipeline.QualityLow || s.Resolution != pipeline.ResolutionOriginal {
		t.Errorf("settings = %+v", s)
	}

	exportFormat, exportResolution = "MP4", "720p"
	s, err = exportSettings(session.EDL{Export: stored})
	if err != nil {
		t.Fatal(err)
	}
	if s.Format != pipeline.FormatMP4 || s.Resolution != pipeline.Resolution720p || s.Quality != pipeline.QualityLow {
		t.Errorf("settings = %+v", s)
	}

	exportQuality = "ultra"
	if _, err := exportSettings(session.EDL{}); err == nil {
		t.Error("expected invalid quality to fail")
	}
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := consoleObserver(&buf)
	obs.State(pipeline.State("encoding"))
	for _, p := range []float64{0, 0.4, 12.5, 12.9, 100} {
		obs.Progress(p)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "encoding\n") || strings.Count(out, "\r") != 3 || !strings.HasSuffix(out, "100%\n") {
		t.Errorf("output = %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(buf.String(), "transcut dev") {
		t.Errorf("version = %q", buf.String())
	}
}
