package whisper

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/transcript"
)

// DefaultChunkSeconds keeps a 16 kHz mono WAV chunk under 20 MB.
const DefaultChunkSeconds = 600

type sendFunc func(ctx context.Context, audioPath, language string) (*Response, error)

// transcribeChunked splits long audio into chunks, sends them one by one and
// reports the cumulative word list after every chunk.
func transcribeChunked(ctx context.Context, engine, audioPath, language string, chunkSeconds int,
	strategies []Strategy, send sendFunc, onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error) {

	if chunkSeconds <= 0 {
		chunkSeconds = DefaultChunkSeconds
	}
	if strategies == nil {
		strategies = DefaultStrategies
	}
	log := logger.WithFields(logrus.Fields{"engine": engine, "audio": audioPath})

	chunks := []ffmpeg.Chunk{{Path: audioPath}}
	if info, err := ffmpeg.Probe(ctx, audioPath); err == nil && info.DurationSeconds() > float64(chunkSeconds) {
		dir, err := os.MkdirTemp("", "transcut-chunks-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		chunks, err = ffmpeg.SplitAudio(ctx, audioPath, dir, chunkSeconds)
		if err != nil {
			return nil, err
		}
		log.WithField("chunks", len(chunks)).Info("split audio for transcription")
	}

	var all []transcript.Word
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := send(ctx, chunk.Path, language)
		if err != nil {
			if len(chunks) > 1 {
				return nil, fmt.Errorf("chunk %d: %w", i, err)
			}
			return nil, err
		}

		words, strategy := ExtractWords(resp, strategies)
		offsetWords(words, chunk.Offset)
		all = append(all, words...)
		log.WithFields(logrus.Fields{"chunk": i, "words": len(words), "strategy": strategy}).Debug("chunk transcribed")

		if onPartial != nil {
			partial := make([]transcript.Word, len(all))
			copy(partial, all)
			onPartial(partial)
		}
		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(chunks)))
		}
	}
	return all, nil
}
