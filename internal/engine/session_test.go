package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
	"github.com/video-stream/transcut/internal/transcript"
)

type stubExtractor struct{ dir string }

func (s *stubExtractor) ExtractAudio(ctx context.Context, videoPath string, onProgress func(float64)) (string, error) {
	onProgress(1)
	f, err := os.CreateTemp(s.dir, "audio-*.wav")
	if err != nil {
		return "", err
	}
	f.Close()
	return f.Name(), nil
}

type stubSpeech struct {
	loads   atomic.Int32
	loadErr error
	block   chan struct{}
}

func (s *stubSpeech) Name() string { return "stub" }

func (s *stubSpeech) Load(ctx context.Context) error {
	s.loads.Add(1)
	return s.loadErr
}

func (s *stubSpeech) Transcribe(ctx context.Context, req pipeline.SpeechRequest, onProgress func(float64), onPartial func([]transcript.Word)) ([]transcript.Word, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	words := []transcript.Word{{Text: "hi", Start: 0, End: 0.5, Confidence: 1}}
	onPartial(words)
	onProgress(1)
	return words, nil
}

type stubEncoder struct {
	dir     string
	running atomic.Int32
	maxSeen atomic.Int32
}

func (s *stubEncoder) Encode(ctx context.Context, req pipeline.EncodeRequest, onProgress func(float64)) (*pipeline.EncodeResult, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	onProgress(1)

	f, err := os.CreateTemp(s.dir, "out-*.mp4")
	if err != nil {
		return nil, err
	}
	f.WriteString("data")
	f.Close()
	return &pipeline.EncodeResult{Path: f.Name(), MimeType: "video/mp4", Size: 4}, nil
}

func newTestSession(t *testing.T, speech *stubSpeech) (*Session, *stubEncoder) {
	t.Helper()
	dir := t.TempDir()
	enc := &stubEncoder{dir: dir}
	s := New(&stubExtractor{dir: dir}, speech, enc)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s, enc
}

func collect(t *testing.T, ch <-chan progress.Event) []progress.Event {
	t.Helper()
	var out []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func TestSubmitBeforeOpen(t *testing.T) {
	s := New(&stubExtractor{}, &stubSpeech{}, &stubEncoder{})
	if _, err := s.Submit(pipeline.TranscribeRequest{}); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestOpenModelLoadFailure(t *testing.T) {
	s := New(&stubExtractor{}, &stubSpeech{loadErr: errors.New("no model")}, &stubEncoder{})
	err := s.Open(context.Background())
	if !errors.Is(err, pipeline.ErrModelLoadFailed) {
		t.Errorf("err = %v, want ErrModelLoadFailed", err)
	}
}

func TestTranscribeCall(t *testing.T) {
	speech := &stubSpeech{}
	s, _ := newTestSession(t, speech)

	call, err := s.Submit(pipeline.TranscribeRequest{Source: "a.mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if call.ID == "" || call.Kind != KindTranscribe {
		t.Errorf("call = %+v", call)
	}

	events := collect(t, call.Events())
	last := events[len(events)-1]
	if !last.Final || last.Stage != string(pipeline.StateComplete) || last.Percent != 100 {
		t.Errorf("final event = %+v", last)
	}
	for _, ev := range events {
		if ev.RequestID != call.ID {
			t.Fatalf("event for %q on call %q", ev.RequestID, call.ID)
		}
	}
	sawPartial := false
	for _, ev := range events[:len(events)-1] {
		if len(ev.Words) > 0 {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Error("no partial result event")
	}

	res, err := call.Wait()
	if err != nil || len(res.Words) != 1 {
		t.Fatalf("Wait = %+v, %v", res, err)
	}

	second, _ := s.Submit(pipeline.TranscribeRequest{Source: "b.mp4"})
	if _, err := second.Wait(); err != nil {
		t.Fatal(err)
	}
	if second.ID == call.ID {
		t.Error("correlation ids must be unique")
	}
	if n := speech.loads.Load(); n != 1 {
		t.Errorf("model loaded %d times, want 1", n)
	}
}

func TestRequestsRunOneAtATime(t *testing.T) {
	s, enc := newTestSession(t, &stubSpeech{})

	var calls []*Call
	for i := 0; i < 5; i++ {
		c, err := s.Submit(pipeline.ExportRequest{Source: "a.mp4", TotalDuration: 10})
		if err != nil {
			t.Fatal(err)
		}
		calls = append(calls, c)
	}
	for _, c := range calls {
		res, err := c.Wait()
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if res.Export == nil || filepath.Ext(res.Export.Path) != ".mp4" {
			t.Errorf("result = %+v", res)
		}
	}
	if peak := enc.maxSeen.Load(); peak != 1 {
		t.Errorf("max concurrent encodes = %d", peak)
	}
}

func TestCancelCall(t *testing.T) {
	speech := &stubSpeech{block: make(chan struct{})}
	s, _ := newTestSession(t, speech)

	running, _ := s.Submit(pipeline.TranscribeRequest{Source: "a.mp4"})
	queued, _ := s.Submit(pipeline.TranscribeRequest{Source: "b.mp4"})

	queued.Cancel()
	running.Cancel()

	for _, c := range []*Call{running, queued} {
		_, err := c.Wait()
		if pipeline.KindOf(err) != pipeline.KindCancelled {
			t.Errorf("call %s: err = %v", c.ID, err)
		}
	}
}

func TestSubmitRejectsUnknownPayload(t *testing.T) {
	s, _ := newTestSession(t, &stubSpeech{})
	if _, err := s.Submit("nope"); !errors.Is(err, ErrPayload) {
		t.Errorf("err = %v", err)
	}
}

func TestCloseCancelsPending(t *testing.T) {
	speech := &stubSpeech{block: make(chan struct{})}
	dir := t.TempDir()
	s := New(&stubExtractor{dir: dir}, speech, &stubEncoder{dir: dir})
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, _ := s.Submit(pipeline.TranscribeRequest{Source: "a.mp4"})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Close()
	}()

	if _, err := c.Wait(); pipeline.KindOf(err) != pipeline.KindCancelled {
		t.Errorf("err = %v", err)
	}
	wg.Wait()

	if _, err := s.Submit(pipeline.TranscribeRequest{}); !errors.Is(err, ErrClosed) {
		t.Errorf("submit after close: %v", err)
	}
}
