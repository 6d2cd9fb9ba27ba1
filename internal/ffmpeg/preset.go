package ffmpeg

import (
	"fmt"

	"github.com/video-stream/transcut/internal/pipeline"
)

// QualityTier holds the encoder settings behind one quality level.
type QualityTier struct {
	Preset       string // x264 preset
	CRF          int    // x264 CRF, also VAAPI global_quality
	VP9CRF       int
	CPUUsed      int // libvpx -cpu-used
	AudioBitrate string
}

var qualityTiers = map[pipeline.Quality]QualityTier{
	pipeline.QualityHigh:   {Preset: "slow", CRF: 18, VP9CRF: 24, CPUUsed: 1, AudioBitrate: "192k"},
	pipeline.QualityMedium: {Preset: "medium", CRF: 23, VP9CRF: 31, CPUUsed: 2, AudioBitrate: "128k"},
	pipeline.QualityLow:    {Preset: "veryfast", CRF: 28, VP9CRF: 37, CPUUsed: 4, AudioBitrate: "96k"},
}

// Output bounding boxes per resolution tier, largest first.
var resolutionTiers = []struct {
	Value  pipeline.Resolution
	Width  int
	Height int
}{
	{pipeline.Resolution1080p, 1920, 1080},
	{pipeline.Resolution720p, 1280, 720},
	{pipeline.Resolution480p, 854, 480},
	{pipeline.Resolution360p, 640, 360},
}

// EncodeParams are the resolved ffmpeg settings for one export.
type EncodeParams struct {
	Format       pipeline.Format `json:"format"`
	Width        int             `json:"width"`  // bounding box, 0 = original
	Height       int             `json:"height"` // bounding box, 0 = original
	VideoEncoder string          `json:"video_encoder"`
	AudioEncoder string          `json:"audio_encoder"`
	Preset       string          `json:"preset,omitempty"`
	CRF          int             `json:"crf"`
	CPUUsed      int             `json:"cpu_used,omitempty"`
	AudioBitrate string          `json:"audio_bitrate"`
	HWAccel      string          `json:"hwaccel"`
	Device       string          `json:"device"`
}

// ResolveParams maps user-facing settings onto encoder parameters.
func ResolveParams(settings pipeline.ExportSettings, caps *HWCapabilities) *EncodeParams {
	settings = settings.WithDefaults()
	tier, ok := qualityTiers[settings.Quality]
	if !ok {
		tier = qualityTiers[pipeline.QualityHigh]
	}
	enc := caps.EncoderFor(settings.Format)

	p := &EncodeParams{
		Format:       settings.Format,
		VideoEncoder: enc.Encoder,
		HWAccel:      enc.HWAccel,
		Device:       enc.Device,
		AudioBitrate: tier.AudioBitrate,
	}
	for _, r := range resolutionTiers {
		if r.Value == settings.Resolution {
			p.Width, p.Height = r.Width, r.Height
		}
	}

	if settings.Format == pipeline.FormatWebM {
		p.AudioEncoder = "libopus"
		p.CRF = tier.VP9CRF
		p.CPUUsed = tier.CPUUsed
	} else {
		p.AudioEncoder = "aac"
		p.CRF = tier.CRF
		p.Preset = tier.Preset
	}
	return p
}

// Software returns a copy of p that uses the software encoder for its format.
func (p *EncodeParams) Software() *EncodeParams {
	sw := *p
	enc := SoftwareCapabilities().EncoderFor(p.Format)
	sw.VideoEncoder = enc.Encoder
	sw.HWAccel = ""
	sw.Device = ""
	return &sw
}

// QualityOption is returned to the frontend for the quality selector.
type QualityOption struct {
	Value        pipeline.Quality `json:"value"`
	Label        string           `json:"label"`
	Desc         string           `json:"desc"`
	Preset       string           `json:"preset"`
	CRF          int              `json:"crf"`
	VP9CRF       int              `json:"vp9_crf"`
	AudioBitrate string           `json:"audio_bitrate"`
}

// ResolutionOption is returned to the frontend for the resolution selector.
type ResolutionOption struct {
	Value  pipeline.Resolution `json:"value"`
	Label  string              `json:"label"`
	Width  int                 `json:"width,omitempty"`
	Height int                 `json:"height,omitempty"`
}

// FormatOption describes an output container.
type FormatOption struct {
	Value      pipeline.Format `json:"value"`
	Label      string          `json:"label"`
	MimeType   string          `json:"mime_type"`
	VideoCodec string          `json:"video_codec"`
	AudioCodec string          `json:"audio_codec"`
}

// Catalog lists every export option.
type Catalog struct {
	Formats     []FormatOption          `json:"formats"`
	Qualities   []QualityOption         `json:"qualities"`
	Resolutions []ResolutionOption      `json:"resolutions"`
	Defaults    pipeline.ExportSettings `json:"defaults"`
}

// GeneratePresets builds the export option catalog. With source info, tiers at
// or above the source height are left out since scaling never upscales.
func GeneratePresets(info *MediaInfo) Catalog {
	c := Catalog{
		Formats: []FormatOption{
			{Value: pipeline.FormatMP4, Label: "MP4", MimeType: pipeline.FormatMP4.MimeType(), VideoCodec: "h264", AudioCodec: "aac"},
			{Value: pipeline.FormatWebM, Label: "WebM", MimeType: pipeline.FormatWebM.MimeType(), VideoCodec: "vp9", AudioCodec: "opus"},
		},
		Defaults: pipeline.DefaultExportSettings(),
	}

	for _, q := range []pipeline.Quality{pipeline.QualityHigh, pipeline.QualityMedium, pipeline.QualityLow} {
		tier := qualityTiers[q]
		c.Qualities = append(c.Qualities, QualityOption{
			Value:        q,
			Label:        qualityLabel(q),
			Desc:         fmt.Sprintf("CRF %d, %s audio", tier.CRF, tier.AudioBitrate),
			Preset:       tier.Preset,
			CRF:          tier.CRF,
			VP9CRF:       tier.VP9CRF,
			AudioBitrate: tier.AudioBitrate,
		})
	}

	c.Resolutions = append(c.Resolutions, ResolutionOption{Value: pipeline.ResolutionOriginal, Label: "Original"})
	for _, r := range resolutionTiers {
		if info != nil && info.Height > 0 && r.Height >= info.Height {
			continue
		}
		c.Resolutions = append(c.Resolutions, ResolutionOption{
			Value:  r.Value,
			Label:  string(r.Value),
			Width:  r.Width,
			Height: r.Height,
		})
	}
	return c
}

func qualityLabel(q pipeline.Quality) string {
	switch q {
	case pipeline.QualityHigh:
		return "High"
	case pipeline.QualityMedium:
		return "Medium"
	default:
		return "Low"
	}
}
