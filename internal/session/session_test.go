package session

import (
	"errors"
	"math"
	"testing"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/transcript"
)

var sampleWords = []transcript.Word{
	{Text: "so", Start: 0, End: 0.4, Confidence: 0.9},
	{Text: "um", Start: 0.5, End: 1.0, Confidence: 0.6},
	{Text: "hello", Start: 1.1, End: 1.6, Confidence: 0.95},
	{Text: "world", Start: 1.7, End: 2.2, Confidence: 0.95},
}

func newSession() *Session {
	s := New("s1", "talk.mp4", "/videos/talk.mp4", 10)
	s.SetTranscript(sampleWords, "en")
	return s
}

func TestDeleteWordAndUndo(t *testing.T) {
	s := newSession()
	r, err := s.DeleteWord(1)
	if err != nil {
		t.Fatal(err)
	}
	if r != (segment.TimeRange{Start: 0.5, End: 1.0}) {
		t.Errorf("range = %v", r)
	}
	snap := s.Snapshot()
	if !snap.Words[1].Deleted || snap.Words[0].Deleted || snap.SegmentCount != 1 || !snap.CanUndo {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.RemainingDuration != 9.5 {
		t.Errorf("remaining = %v", snap.RemainingDuration)
	}

	if !s.Undo() {
		t.Fatal("undo failed")
	}
	if s.Undo() {
		t.Error("undo on empty history")
	}
	if len(s.Ranges()) != 0 {
		t.Errorf("ranges = %v", s.Ranges())
	}
}

func TestDeleteWordsOrderAndBounds(t *testing.T) {
	s := newSession()
	r, err := s.DeleteWords(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if r != (segment.TimeRange{Start: 1.1, End: 2.2}) {
		t.Errorf("range = %v", r)
	}
	if _, err := s.DeleteWord(9); !errors.Is(err, ErrWordIndex) {
		t.Errorf("err = %v", err)
	}
	if _, err := s.DeleteWord(-1); !errors.Is(err, ErrWordIndex) {
		t.Errorf("err = %v", err)
	}
}

func TestDeleteTimeRangeClipped(t *testing.T) {
	s := newSession()
	r, err := s.DeleteTimeRange(12, 8)
	if err != nil {
		t.Fatal(err)
	}
	if r != (segment.TimeRange{Start: 8, End: 10}) {
		t.Errorf("range = %v", r)
	}
	if _, err := s.DeleteTimeRange(11, 12); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("outside video: %v", err)
	}
	if _, err := s.DeleteTimeRange(3, 3); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("empty range: %v", err)
	}
}

func TestUndoAfterMerge(t *testing.T) {
	s := newSession()
	s.DeleteTimeRange(2, 5)
	s.DeleteTimeRange(4, 7)
	if got := s.Ranges(); len(got) != 1 || got[0] != (segment.TimeRange{Start: 2, End: 7}) {
		t.Fatalf("merged = %v", got)
	}
	s.Undo()
	if got := s.Ranges(); len(got) != 1 || got[0] != (segment.TimeRange{Start: 2, End: 5}) {
		t.Errorf("after undo = %v", got)
	}
}

func TestClearAndReset(t *testing.T) {
	s := newSession()
	if s.Edited() {
		t.Error("fresh session reports edits")
	}
	s.DeleteWord(0)
	if !s.Edited() {
		t.Error("deletion not reported")
	}
	s.Seek(3)
	s.ClearDeleted()
	if len(s.Ranges()) != 0 || s.Snapshot().CanUndo || s.Edited() {
		t.Error("clear left deletions")
	}
	s.DeleteWord(0)
	s.Reset()
	if len(s.Words()) != 0 || len(s.Ranges()) != 0 || s.Position() != 0 {
		t.Error("reset left state")
	}
}

func TestSeekSkipsDeleted(t *testing.T) {
	s := newSession()
	s.DeleteTimeRange(2, 4)
	s.DeleteTimeRange(4, 5)

	pos, skipped := s.Seek(2.5)
	if !skipped || pos != 5 {
		t.Errorf("seek = %v, %v", pos, skipped)
	}
	if s.Position() != 5 {
		t.Errorf("position = %v", s.Position())
	}
	pos, skipped = s.Seek(4.95)
	if skipped || pos != 4.95 {
		t.Errorf("near end = %v, %v", pos, skipped)
	}
	if pos, skipped = s.Seek(6); skipped || pos != 6 {
		t.Errorf("playable = %v, %v", pos, skipped)
	}
}

func TestSnapshotActiveWord(t *testing.T) {
	s := newSession()
	s.Seek(1.3)
	snap := s.Snapshot()
	if !snap.Words[2].Active || snap.Words[1].Active {
		t.Errorf("active flags wrong: %+v", snap.Words)
	}
	if len(snap.Kept) != 1 || snap.Kept[0] != (segment.TimeRange{Start: 0, End: 10}) {
		t.Errorf("kept = %v", snap.Kept)
	}
}

func TestSearchAndSubtitles(t *testing.T) {
	s := newSession()
	matches := s.Search("L")
	if len(matches) != 2 || matches[0].Index != 2 || matches[1].Index != 3 {
		t.Errorf("matches = %+v", matches)
	}

	s.DeleteWord(1)
	if got := s.Subtitles(false); len(got) != 4 {
		t.Errorf("original subtitles = %d words", len(got))
	}
	edited := s.Subtitles(true)
	if len(edited) != 3 || edited[1].Text != "hello" {
		t.Fatalf("edited = %+v", edited)
	}
	// 0.5 seconds were cut before "hello".
	if math.Abs(edited[1].Start-0.6) > 1e-9 {
		t.Errorf("rebased start = %v", edited[1].Start)
	}
}

func TestExportRequest(t *testing.T) {
	s := newSession()
	s.DeleteTimeRange(2, 4)
	req := s.ExportRequest(pipeline.DefaultExportSettings())
	if req.Source != "/videos/talk.mp4" || req.TotalDuration != 10 || len(req.Deleted) != 1 {
		t.Errorf("req = %+v", req)
	}
	keep := s.Keep()
	if len(keep) != 2 || keep[1] != (segment.TimeRange{Start: 4, End: 10}) {
		t.Errorf("keep = %v", keep)
	}
}
