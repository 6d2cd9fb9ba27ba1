package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Extractor pulls the audio track out of a video as 16 kHz mono WAV, the input
// format whisper expects.
type Extractor struct {
	TempDir string
}

// NewExtractor writes its output under tempDir ("" for the OS default).
func NewExtractor(tempDir string) *Extractor {
	return &Extractor{TempDir: tempDir}
}

// ExtractAudio returns the path of a temporary WAV file owned by the caller.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string, onProgress func(float64)) (string, error) {
	info, err := Probe(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if !info.HasAudio() {
		return "", fmt.Errorf("%s has no audio stream", filepath.Base(videoPath))
	}

	if e.TempDir != "" {
		if err := os.MkdirAll(e.TempDir, 0755); err != nil {
			return "", err
		}
	}
	tmpFile, err := os.CreateTemp(e.TempDir, "transcut-audio-*.wav")
	if err != nil {
		return "", err
	}
	tmpFile.Close()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"-y",
		tmpFile.Name(),
	}
	if err := run(ctx, args, info.DurationSeconds(), onProgress); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	fi, err := os.Stat(tmpFile.Name())
	if err != nil || fi.Size() == 0 {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("ffmpeg produced no audio for %s", filepath.Base(videoPath))
	}

	logger.WithFields(logrus.Fields{"source": videoPath, "bytes": fi.Size()}).Debug("audio extracted")
	return tmpFile.Name(), nil
}

// Chunk is one piece of a split audio file.
type Chunk struct {
	Path   string
	Offset float64 // seconds from the start of the original
}

// SplitAudio cuts audioPath into pieces of about chunkSeconds using the segment
// muxer. Offsets come from probing each piece.
func SplitAudio(ctx context.Context, audioPath, dir string, chunkSeconds int) ([]Chunk, error) {
	ext := filepath.Ext(audioPath)
	pattern := filepath.Join(dir, "chunk_%03d"+ext)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", audioPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", chunkSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		"-y",
		pattern,
	}
	if err := run(ctx, args, 0, nil); err != nil {
		return nil, fmt.Errorf("ffmpeg split: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "chunk_") && strings.HasSuffix(e.Name(), ext) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no audio chunks generated")
	}

	chunks := make([]Chunk, len(paths))
	offset := 0.0
	for i, p := range paths {
		chunks[i] = Chunk{Path: p, Offset: offset}
		d := float64(chunkSeconds)
		if info, err := Probe(ctx, p); err == nil && info.DurationSeconds() > 0 {
			d = info.DurationSeconds()
		}
		offset += d
	}
	return chunks, nil
}
