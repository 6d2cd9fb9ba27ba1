package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/transcript"
)

var logger = logrus.WithField("component", "pipeline")

// Overall progress split between the two transcription stages.
const (
	extractWeight    = 0.2
	transcribeOffset = 20.0
	transcribeWeight = 0.8
)

// Observer receives a run's progress, partial results and state changes.
// Any field may be nil.
type Observer struct {
	Progress func(percent float64)
	Partial  func(words []transcript.Word)
	State    func(State)
}

// TranscribeRequest is the input for a transcription run.
type TranscribeRequest struct {
	Source   string `json:"source"`
	Language string `json:"language"`
}

// Transcriber runs audio extraction followed by speech recognition.
type Transcriber struct {
	Extractor AudioExtractor
	Speech    SpeechEngine
}

// NewTranscriber wires the two collaborators.
func NewTranscriber(extractor AudioExtractor, speech SpeechEngine) *Transcriber {
	return &Transcriber{Extractor: extractor, Speech: speech}
}

// Transcribe returns the recognised words of req.Source. Progress reaches 20%
// at the end of extraction and 100% when recognition completes. An empty
// result fails with ErrNoSpeech.
func (t *Transcriber) Transcribe(ctx context.Context, req TranscribeRequest, obs Observer) ([]transcript.Word, error) {
	started := time.Now()
	log := logger.WithFields(logrus.Fields{"source": req.Source, "language": req.Language})

	m := NewMachine(obs.State)
	th := progress.NewThrottle(obs.Progress)
	th.Update(0)

	fail := func(k Kind, err error) ([]transcript.Word, error) {
		m.Fail()
		pe := NewError(k, err)
		log.WithError(err).WithField("kind", pe.Kind).Warn("transcription failed")
		return nil, pe
	}

	if err := m.Transition(StateExtractingAudio); err != nil {
		return nil, err
	}
	audioPath, err := t.Extractor.ExtractAudio(ctx, req.Source,
		progress.Fraction(progress.Scale(0, extractWeight, th.Func())))
	if err != nil {
		return fail(KindExtractionFailed, err)
	}
	if audioPath == "" {
		return fail(KindExtractionFailed, errors.New("extractor produced no output"))
	}
	defer os.Remove(audioPath)

	if err := m.Transition(StateLoadingModel); err != nil {
		return nil, err
	}
	if err := t.Speech.Load(ctx); err != nil {
		return fail(KindModelLoadFailed, err)
	}

	if err := m.Transition(StateTranscribing); err != nil {
		return nil, err
	}
	words, err := t.Speech.Transcribe(ctx,
		SpeechRequest{AudioPath: audioPath, Language: req.Language},
		progress.Fraction(progress.Scale(transcribeOffset, transcribeWeight, th.Func())),
		obs.Partial,
	)
	if err != nil {
		return fail(KindTranscriptionFailed, err)
	}
	if len(words) == 0 {
		return fail(KindNoSpeechDetected, &Error{Kind: KindNoSpeechDetected})
	}

	th.Update(100)
	if err := m.Transition(StateComplete); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"engine":  t.Speech.Name(),
		"words":   len(words),
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("transcription complete")
	return words, nil
}
