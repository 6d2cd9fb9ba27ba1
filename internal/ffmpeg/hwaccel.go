package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/video-stream/transcut/internal/pipeline"
)

// EncoderInfo describes one available video encoder (hardware or software).
type EncoderInfo struct {
	Encoder string `json:"encoder"` // e.g. "h264_vaapi", "libx264"
	HWAccel string `json:"hwaccel"` // "vaapi" or "" for software
	Device  string `json:"device"`  // "/dev/dri/renderD128" or ""
}

// HWCapabilities is the server-wide hardware detection result.
type HWCapabilities struct {
	H264    EncoderInfo `json:"h264"`
	VP9     EncoderInfo `json:"vp9"`
	HWAccel string      `json:"hwaccel_type"` // "vaapi" or "none"
	Device  string      `json:"device"`
}

var (
	serverCaps     *HWCapabilities
	serverCapsOnce sync.Once
)

// SoftwareCapabilities never touches the GPU.
func SoftwareCapabilities() *HWCapabilities {
	return &HWCapabilities{
		H264:    EncoderInfo{Encoder: "libx264"},
		VP9:     EncoderInfo{Encoder: "libvpx-vp9"},
		HWAccel: "none",
	}
}

// DetectHardware probes for a working VAAPI H.264 encoder once and caches the
// result. Without one, software encoders are used.
func DetectHardware() *HWCapabilities {
	serverCapsOnce.Do(func() {
		serverCaps = detectHardware()
	})
	return serverCaps
}

func detectHardware() *HWCapabilities {
	caps := SoftwareCapabilities()

	device := findVAAPIDevice()
	if device == "" {
		logger.Info("no VAAPI device found, using software encoders")
		return caps
	}
	logger.WithField("device", device).Info("found VAAPI device")

	if testVAAPIEncoder(device, "h264_vaapi") {
		caps.H264 = EncoderInfo{Encoder: "h264_vaapi", HWAccel: "vaapi", Device: device}
		caps.HWAccel = "vaapi"
		caps.Device = device
		logger.Info("encoder available: h264_vaapi")
	} else {
		logger.Info("encoder not available: h264_vaapi")
	}
	return caps
}

// EncoderFor returns the video encoder used for a container.
func (caps *HWCapabilities) EncoderFor(format pipeline.Format) EncoderInfo {
	if caps == nil {
		caps = SoftwareCapabilities()
	}
	if format == pipeline.FormatWebM {
		return caps.VP9
	}
	return caps.H264
}

// findVAAPIDevice looks for a VAAPI render node under /dev/dri/.
func findVAAPIDevice() string {
	candidates := []string{
		"/dev/dri/renderD128",
		"/dev/dri/renderD129",
	}
	for _, dev := range candidates {
		if _, err := os.Stat(dev); err == nil {
			return dev
		}
	}
	return ""
}

// testVAAPIEncoder runs a quick encode test to verify a VAAPI encoder works.
func testVAAPIEncoder(device, encoder string) bool {
	cmd := exec.Command(FFmpegBin,
		"-hide_banner", "-loglevel", "error",
		"-init_hw_device", fmt.Sprintf("vaapi=hw:%s", device),
		"-f", "lavfi", "-i", "nullsrc=s=256x256:d=0.1:r=1",
		"-vf", "format=nv12,hwupload",
		"-c:v", encoder,
		"-frames:v", "1",
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.WithError(err).WithField("output", strings.TrimSpace(string(output))).
			Debugf("test %s failed", encoder)
		return false
	}
	return true
}
