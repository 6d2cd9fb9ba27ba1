package session

import (
	"strings"
	"testing"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/segment"
)

func TestEDLRoundTrip(t *testing.T) {
	s := newSession()
	s.DeleteTimeRange(2, 5)
	s.DeleteTimeRange(4, 6)

	data, err := MarshalEDL(s.EDL())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"version: 1", "source: talk.mp4", "duration: 10", "deleted:", "kept:"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}

	e, err := ParseEDL(data)
	if err != nil {
		t.Fatal(err)
	}
	other := New("s2", "talk.mp4", "/videos/talk.mp4", 10)
	other.ApplyEDL(e)
	if got := other.Ranges(); len(got) != 1 || got[0] != (segment.TimeRange{Start: 2, End: 6}) {
		t.Errorf("ranges = %v", got)
	}
	if !other.Undo() || other.Ranges()[0].End != 5 {
		t.Error("imported history should support undo")
	}
}

func TestParseEDL(t *testing.T) {
	e, err := ParseEDL([]byte(`
version: 1
source: clip.mp4
duration: 30
deleted:
  - {start: 1, end: 2}
  - {start: 1.5, end: 3}
export:
  format: webm
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Ranges(); len(got) != 1 || got[0] != (segment.TimeRange{Start: 1, End: 3}) {
		t.Errorf("ranges = %v", got)
	}
	if e.Export == nil || e.Export.Format != pipeline.FormatWebM || e.Export.Quality != pipeline.QualityHigh {
		t.Errorf("export = %+v", e.Export)
	}

	bad := []string{
		"version: 1\ndeleted:\n  - {start: 3, end: 2}\n",
		"version: 9\n",
		"version: 1\nunknown: true\n",
		"version: 1\nexport:\n  format: avi\n",
	}
	for _, doc := range bad {
		if _, err := ParseEDL([]byte(doc)); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}

func TestApplyEDLClips(t *testing.T) {
	s := New("s", "a.mp4", "/a.mp4", 10)
	s.ApplyEDL(EDL{Deleted: []segment.TimeRange{{Start: 8, End: 20}, {Start: 12, End: 15}}})
	if got := s.Ranges(); len(got) != 1 || got[0] != (segment.TimeRange{Start: 8, End: 10}) {
		t.Errorf("ranges = %v", got)
	}
}
