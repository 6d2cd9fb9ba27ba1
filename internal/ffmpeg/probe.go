package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
	Duration   string `json:"duration,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type MediaInfo struct {
	Duration   string        `json:"duration"`
	Size       string        `json:"size"`
	BitRate    string        `json:"bit_rate"`
	Container  string        `json:"container"`
	VideoCodec string        `json:"video_codec"`
	AudioCodec string        `json:"audio_codec"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FrameRate  string        `json:"frame_rate"`
	Streams    []ProbeStream `json:"streams"`
}

// DurationSeconds returns the container duration, or 0 when unknown.
func (m *MediaInfo) DurationSeconds() float64 {
	if m == nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(m.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func (m *MediaInfo) HasVideo() bool { return m != nil && m.VideoCodec != "" }
func (m *MediaInfo) HasAudio() bool { return m != nil && m.AudioCodec != "" }

// Probe runs ffprobe on filePath.
func Probe(ctx context.Context, filePath string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, FFprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filePath, err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*MediaInfo, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{
		Duration: result.Format.Duration,
		Size:     result.Format.Size,
		BitRate:  result.Format.BitRate,
		Streams:  result.Streams,
	}
	if name, _, _ := strings.Cut(result.Format.FormatName, ","); name != "" {
		info.Container = name
	}

	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			// skip attached cover art
			if info.VideoCodec == "" && s.CodecName != "mjpeg" && s.CodecName != "png" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.FrameRate = s.RFrameRate
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}

	if info.Duration == "" {
		for _, s := range result.Streams {
			if s.Duration != "" {
				info.Duration = s.Duration
				break
			}
		}
	}

	return info, nil
}
