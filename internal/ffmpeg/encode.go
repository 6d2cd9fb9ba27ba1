package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/segment"
)

// Encoder renders exports with a single ffmpeg filter graph: every kept range
// is trimmed out of the source, the pieces are concatenated in order and the
// result is optionally scaled.
type Encoder struct {
	OutputDir string
	Caps      *HWCapabilities
}

// NewEncoder writes exports under outputDir. A nil caps means software only.
func NewEncoder(outputDir string, caps *HWCapabilities) *Encoder {
	return &Encoder{OutputDir: outputDir, Caps: caps}
}

// Encode implements pipeline.Encoder.
func (e *Encoder) Encode(ctx context.Context, req pipeline.EncodeRequest, onProgress func(float64)) (*pipeline.EncodeResult, error) {
	if len(req.Keep) == 0 {
		return nil, fmt.Errorf("no ranges to encode")
	}
	settings := req.Settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	hasAudio := true
	if info, err := Probe(ctx, req.Source); err == nil {
		hasAudio = info.HasAudio()
		if !info.HasVideo() {
			return nil, fmt.Errorf("%s has no video stream", req.Source)
		}
	}

	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.CreateTemp(e.OutputDir, "export-*."+string(settings.Format))
	if err != nil {
		return nil, err
	}
	out.Close()
	outPath := out.Name()

	params := ResolveParams(settings, e.Caps)
	total := segment.TotalDuration(req.Keep)
	log := logger.WithFields(logrus.Fields{
		"source":   req.Source,
		"segments": len(req.Keep),
		"encoder":  params.VideoEncoder,
		"hwaccel":  params.HWAccel,
	})
	log.Info("starting export encode")

	startedAt := time.Now()
	err = run(ctx, BuildEncodeArgs(req.Source, outPath, req.Keep, params, hasAudio), total, onProgress)
	if err != nil && ctx.Err() == nil && params.HWAccel == "vaapi" {
		log.WithError(err).Warn("VAAPI encode failed, retrying with software encoder")
		params = params.Software()
		err = run(ctx, BuildEncodeArgs(req.Source, outPath, req.Keep, params, hasAudio), total, onProgress)
	}
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("encode: %w", err)
	}

	fi, err := os.Stat(outPath)
	if err != nil || fi.Size() == 0 {
		os.Remove(outPath)
		return nil, fmt.Errorf("encode: ffmpeg produced an empty file")
	}

	log.WithFields(logrus.Fields{
		"output":  outPath,
		"bytes":   fi.Size(),
		"elapsed": time.Since(startedAt).Round(time.Millisecond),
	}).Info("export encoded")

	return &pipeline.EncodeResult{Path: outPath, MimeType: settings.Format.MimeType(), Size: fi.Size()}, nil
}

// BuildFilterGraph returns the -filter_complex graph for the kept ranges. The
// graph produces [outv] and, with audio, [outa].
func BuildFilterGraph(keep []segment.TimeRange, p *EncodeParams, hasAudio bool) string {
	var parts []string
	var inputs strings.Builder
	for i, r := range keep {
		start, end := formatSeconds(r.Start), formatSeconds(r.End)
		parts = append(parts, fmt.Sprintf("[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d]", start, end, i))
		fmt.Fprintf(&inputs, "[v%d]", i)
		if hasAudio {
			parts = append(parts, fmt.Sprintf("[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]", start, end, i))
			fmt.Fprintf(&inputs, "[a%d]", i)
		}
	}

	if hasAudio {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[cv][outa]", inputs.String(), len(keep)))
	} else {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[cv]", inputs.String(), len(keep)))
	}

	var post []string
	if p.Width > 0 && p.Height > 0 {
		// fit inside the box, never upscale, keep dimensions even
		post = append(post, fmt.Sprintf(
			"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2",
			p.Width, p.Height))
	}
	if p.HWAccel == "vaapi" {
		post = append(post, "format=nv12", "hwupload")
	} else {
		post = append(post, "format=yuv420p")
	}
	parts = append(parts, "[cv]"+strings.Join(post, ",")+"[outv]")

	return strings.Join(parts, ";")
}

// BuildEncodeArgs constructs the full ffmpeg command line for an export.
func BuildEncodeArgs(source, output string, keep []segment.TimeRange, p *EncodeParams, hasAudio bool) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats", "-progress", "pipe:1"}
	if p.HWAccel == "vaapi" {
		args = append(args, "-vaapi_device", p.Device)
	}
	args = append(args,
		"-i", source,
		"-filter_complex", BuildFilterGraph(keep, p, hasAudio),
		"-map", "[outv]",
	)
	if hasAudio {
		args = append(args, "-map", "[outa]")
	}

	if p.HWAccel == "vaapi" {
		args = appendVAAPIArgs(args, p)
	} else {
		args = appendSoftwareArgs(args, p)
	}

	if hasAudio {
		args = append(args, "-c:a", p.AudioEncoder, "-b:a", p.AudioBitrate)
	}

	switch p.Format {
	case pipeline.FormatWebM:
		args = append(args, "-f", "webm")
	default:
		args = append(args, "-movflags", "+faststart", "-f", "mp4")
	}
	return append(args, "-y", output)
}

// appendVAAPIArgs adds VAAPI-specific video encoding arguments.
func appendVAAPIArgs(args []string, p *EncodeParams) []string {
	// VAAPI uses -global_quality for QP-based quality (not CRF)
	return append(args,
		"-c:v", p.VideoEncoder,
		"-global_quality", strconv.Itoa(p.CRF),
	)
}

// appendSoftwareArgs adds software encoder-specific video encoding arguments.
func appendSoftwareArgs(args []string, p *EncodeParams) []string {
	switch p.VideoEncoder {
	case "libvpx-vp9":
		return append(args,
			"-c:v", "libvpx-vp9",
			"-deadline", "good",
			"-cpu-used", strconv.Itoa(p.CPUUsed),
			"-crf", strconv.Itoa(p.CRF),
			"-b:v", "0",
			"-row-mt", "1",
		)
	default:
		return append(args,
			"-c:v", p.VideoEncoder,
			"-preset", p.Preset,
			"-crf", strconv.Itoa(p.CRF),
		)
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
