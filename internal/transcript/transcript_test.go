package transcript

import (
	"reflect"
	"testing"

	"github.com/video-stream/transcut/internal/segment"
)

func sampleWords() []Word {
	return []Word{
		{Text: "Hello", Start: 0, End: 0.4, Confidence: 0.9},
		{Text: "um", Start: 0.4, End: 0.7, Confidence: 0.6},
		{Text: "World", Start: 0.8, End: 1.3, Confidence: 0.95},
		{Text: "hello", Start: 1.5, End: 1.9, Confidence: 0.9},
	}
}

func TestIsWordDeletedRequiresContainment(t *testing.T) {
	w := Word{Text: "x", Start: 5.0, End: 5.5}

	if IsWordDeleted(w, []segment.TimeRange{{Start: 5.2, End: 5.4}}) {
		t.Error("partial overlap marked word deleted")
	}
	if IsWordDeleted(w, []segment.TimeRange{{Start: 5.1, End: 6}}) {
		t.Error("range missing the word start marked it deleted")
	}
	if !IsWordDeleted(w, []segment.TimeRange{{Start: 5.0, End: 5.5}}) {
		t.Error("exact range should delete the word")
	}
	if !IsWordDeleted(w, []segment.TimeRange{{Start: 1, End: 2}, {Start: 4, End: 6}}) {
		t.Error("enclosing range should delete the word")
	}
}

func TestIsTimeDeleted(t *testing.T) {
	deleted := []segment.TimeRange{{Start: 2, End: 3}}
	cases := map[float64]bool{1.99: false, 2: true, 2.5: true, 3: false}
	for at, want := range cases {
		if got := IsTimeDeleted(at, deleted); got != want {
			t.Errorf("IsTimeDeleted(%v) = %v, want %v", at, got, want)
		}
	}
}

func TestIsWordActiveInclusive(t *testing.T) {
	w := Word{Start: 1, End: 2}
	for _, at := range []float64{1, 1.5, 2} {
		if !IsWordActive(w, at) {
			t.Errorf("word should be active at %v", at)
		}
	}
	if IsWordActive(w, 2.01) {
		t.Error("word active after its end")
	}
}

func TestSearchKeepsOriginalIndices(t *testing.T) {
	got := Search("HEL", sampleWords())
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 3 {
		t.Errorf("indices = %d,%d, want 0,3", got[0].Index, got[1].Index)
	}
	if len(Search("zzz", sampleWords())) != 0 {
		t.Error("expected no matches")
	}
}

func TestKeptWordsAndRebase(t *testing.T) {
	words := sampleWords()
	deleted := []segment.TimeRange{{Start: 0.4, End: 0.8}}

	kept := KeptWords(words, deleted)
	if len(kept) != 3 || kept[1].Text != "World" {
		t.Fatalf("KeptWords = %v", kept)
	}

	keep := segment.DeriveKept(2, deleted)
	rebased := RebaseWords(kept, keep)
	want := []float64{0, 0.4, 1.1}
	for i, w := range rebased {
		if d := w.Start - want[i]; d > 1e-9 || d < -1e-9 {
			t.Errorf("word %d start = %v, want %v", i, w.Start, want[i])
		}
	}
}

func TestStore(t *testing.T) {
	words := sampleWords()
	s := NewStore(words)
	words[0].Text = "mutated"

	if w, _ := s.At(0); w.Text != "Hello" {
		t.Error("store shares caller slice")
	}
	if _, ok := s.At(10); ok {
		t.Error("At out of range returned ok")
	}
	if s.Text() != "Hello um World hello" {
		t.Errorf("Text = %q", s.Text())
	}
	if s.ActiveIndex(1.0) != 2 {
		t.Errorf("ActiveIndex(1.0) = %d, want 2", s.ActiveIndex(1.0))
	}

	s.Replace(nil)
	if s.Len() != 0 || !reflect.DeepEqual(s.Words(), []Word{}) {
		t.Errorf("Replace(nil) left %v", s.Words())
	}
}
