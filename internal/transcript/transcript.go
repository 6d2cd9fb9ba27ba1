package transcript

import (
	"strings"

	"github.com/video-stream/transcut/internal/segment"
)

// Word is a single timed token produced by the speech engine.
type Word struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Range returns the word's time span.
func (w Word) Range() segment.TimeRange {
	return segment.TimeRange{Start: w.Start, End: w.End}
}

// Match is a search hit that remembers the word's position in the full transcript.
type Match struct {
	Word  Word `json:"word"`
	Index int  `json:"index"`
}

// IsTimeDeleted reports whether t falls inside [start, end) of any deleted range.
func IsTimeDeleted(t float64, deleted []segment.TimeRange) bool {
	return segment.Contains(deleted, t)
}

// IsWordDeleted reports whether some deleted range fully contains the word.
// A partial overlap does not count.
func IsWordDeleted(w Word, deleted []segment.TimeRange) bool {
	for _, r := range deleted {
		if w.Start >= r.Start && w.End <= r.End {
			return true
		}
	}
	return false
}

// IsWordActive reports whether t is within [start, end] of the word, inclusive.
func IsWordActive(w Word, t float64) bool {
	return t >= w.Start && t <= w.End
}

// Search returns the words whose text contains query, case-insensitively,
// together with their original indices. An empty query matches every word.
func Search(query string, words []Word) []Match {
	q := strings.ToLower(query)
	matches := []Match{}
	for i, w := range words {
		if strings.Contains(strings.ToLower(w.Text), q) {
			matches = append(matches, Match{Word: w, Index: i})
		}
	}
	return matches
}

// Text joins word texts with single spaces.
func Text(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// KeptWords returns the words that are not deleted, in order.
func KeptWords(words []Word, deleted []segment.TimeRange) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if !IsWordDeleted(w, deleted) {
			out = append(out, w)
		}
	}
	return out
}

// RebaseWords maps word times from the source timeline onto the timeline of an
// export made of the given kept ranges concatenated in order. Words that do not
// start inside a kept range are dropped; words crossing a seam are cut at it.
func RebaseWords(words []Word, kept []segment.TimeRange) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		offset := 0.0
		for _, k := range kept {
			if w.Start >= k.Start && w.Start < k.End {
				end := w.End
				if end > k.End {
					end = k.End
				}
				out = append(out, Word{
					Text:       w.Text,
					Start:      offset + (w.Start - k.Start),
					End:        offset + (end - k.Start),
					Confidence: w.Confidence,
				})
				break
			}
			offset += k.Duration()
		}
	}
	return out
}
