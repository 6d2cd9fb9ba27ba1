package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultFrameWidth is the preview width used when none is requested.
const DefaultFrameWidth = 320

// Frame decodes the video frame at the given second and returns it as a JPEG
// scaled to width. It uses VAAPI decode when caps has a device and falls back
// to the CPU if that fails.
func Frame(ctx context.Context, videoPath string, at float64, width int, caps *HWCapabilities) ([]byte, error) {
	if at < 0 {
		at = 0
	}
	if width <= 0 {
		width = DefaultFrameWidth
	}

	if caps != nil && caps.Device != "" {
		img, err := grabFrame(ctx, frameArgs(videoPath, at, width, caps.Device))
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithError(err).Warn("VAAPI frame decode failed, falling back to CPU")
	}
	return grabFrame(ctx, frameArgs(videoPath, at, width, ""))
}

// frameArgs seeks before the input so only one frame is decoded.
func frameArgs(videoPath string, at float64, width int, device string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	scale := fmt.Sprintf("scale=%d:-2", width)
	if device != "" {
		args = append(args,
			"-hwaccel", "vaapi",
			"-hwaccel_device", device,
			"-hwaccel_output_format", "vaapi",
		)
		scale = "hwdownload,format=nv12," + scale
	}
	return append(args,
		"-ss", formatSeconds(at),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", scale,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-",
	)
}

func grabFrame(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, FFmpegBin, args...)
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: 2048}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg frame: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg frame: no image decoded, position may be past the end")
	}
	return stdout.Bytes(), nil
}
