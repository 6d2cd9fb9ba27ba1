package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/playback"
	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/transcript"
)

var (
	ErrWordIndex    = errors.New("word index out of range")
	ErrInvalidRange = errors.New("invalid time range")
)

// Session is one editing session: a source video, its transcript and the
// deleted-segment set. All methods are safe for concurrent use.
type Session struct {
	ID        string
	OwnerID   int64
	FileName  string
	VideoPath string

	mu       sync.RWMutex
	duration float64
	language string
	position float64
	words    *transcript.Store
	deleted  *segment.Set
	skip     *playback.SkipController
}

// New creates an empty session for a probed video.
func New(id, fileName, videoPath string, duration float64) *Session {
	s := &Session{
		ID:        id,
		FileName:  fileName,
		VideoPath: videoPath,
		duration:  duration,
		words:     transcript.NewStore(nil),
		deleted:   segment.NewSet(),
	}
	s.skip = playback.NewSkipController(s)
	return s
}

// Restore rebuilds a session from persisted state.
func Restore(id, fileName, videoPath string, duration float64, language string,
	words []transcript.Word, history []segment.TimeRange) *Session {
	s := New(id, fileName, videoPath, duration)
	s.language = language
	s.words.Replace(words)
	s.deleted = segment.Restore(history)
	return s
}

func (s *Session) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

func (s *Session) Position() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Words returns a copy of the transcript.
func (s *Session) Words() []transcript.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.words.Words()
}

// Ranges returns the merged deleted ranges. Session is a playback.RangeSource.
func (s *Session) Ranges() []segment.TimeRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted.Ranges()
}

// History returns the raw deletion history, oldest first.
func (s *Session) History() []segment.TimeRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted.History()
}

// DeleteWord marks the time span of word i as deleted.
func (s *Session) DeleteWord(i int) (segment.TimeRange, error) {
	return s.DeleteWords(i, i)
}

// DeleteWords marks the span from the start of word i to the end of word j as
// deleted. The indices may be given in either order.
func (s *Session) DeleteWords(i, j int) (segment.TimeRange, error) {
	if i > j {
		i, j = j, i
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	first, ok := s.words.At(i)
	if !ok {
		return segment.TimeRange{}, fmt.Errorf("%w: %d", ErrWordIndex, i)
	}
	last, ok := s.words.At(j)
	if !ok {
		return segment.TimeRange{}, fmt.Errorf("%w: %d", ErrWordIndex, j)
	}
	r := segment.TimeRange{Start: first.Start, End: last.End}
	if !s.deleted.Insert(r) {
		return segment.TimeRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return r, nil
}

// DeleteTimeRange marks a raw timeline span as deleted, clipped to the video.
func (s *Session) DeleteTimeRange(start, end float64) (segment.TimeRange, error) {
	if start > end {
		start, end = end, start
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := segment.TimeRange{Start: start, End: end}
	if s.duration > 0 {
		clipped := segment.Clip([]segment.TimeRange{r}, s.duration)
		if len(clipped) == 0 {
			return segment.TimeRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
		}
		r = clipped[0]
	}
	if !s.deleted.Insert(r) {
		return segment.TimeRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return r, nil
}

// Undo removes the most recent deletion. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted.Undo()
}

// ClearDeleted restores every deleted range.
func (s *Session) ClearDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted.Clear()
}

// SetTranscript replaces the words after a transcription. Deletions are
// time based and survive.
func (s *Session) SetTranscript(words []transcript.Word, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words.Replace(words)
	if language != "" {
		s.language = language
	}
}

// SetDuration updates the probed duration.
func (s *Session) SetDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration = d
}

// Reset drops the transcript, the deletions and the playhead.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words.Replace(nil)
	s.deleted.Clear()
	s.position = 0
}

// Seek resolves a playback position against the deleted ranges, stores it and
// returns where playback should continue.
func (s *Session) Seek(position float64) (float64, bool) {
	next := s.skip.NextPlayable(position)
	s.mu.Lock()
	s.position = next
	s.mu.Unlock()
	return next, next != position
}

// Edited reports whether any time is marked deleted.
func (s *Session) Edited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.deleted.Empty()
}

// Keep returns the ranges an export would contain.
func (s *Session) Keep() []segment.TimeRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pipeline.Keep(pipeline.ExportRequest{Deleted: s.deleted.Ranges(), TotalDuration: s.duration})
}

// ExportRequest builds the export input for the current edit.
func (s *Session) ExportRequest(settings pipeline.ExportSettings) pipeline.ExportRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pipeline.ExportRequest{
		Source:        s.VideoPath,
		Deleted:       s.deleted.Ranges(),
		TotalDuration: s.duration,
		Settings:      settings,
	}
}

// WordView is a transcript word annotated for display.
type WordView struct {
	transcript.Word
	Index   int  `json:"index"`
	Deleted bool `json:"deleted"`
	Active  bool `json:"active"`
}

// Snapshot is a consistent read-only view of a session.
type Snapshot struct {
	ID                string              `json:"id"`
	FileName          string              `json:"file_name"`
	Language          string              `json:"language"`
	Duration          float64             `json:"duration"`
	RemainingDuration float64             `json:"remaining_duration"`
	Position          float64             `json:"position"`
	Words             []WordView          `json:"words"`
	Deleted           []segment.TimeRange `json:"deleted"`
	Kept              []segment.TimeRange `json:"kept"`
	SegmentCount      int                 `json:"segment_count"`
	CanUndo           bool                `json:"can_undo"`
}

// Snapshot captures the session state under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deleted := s.deleted.Ranges()
	kept := pipeline.Keep(pipeline.ExportRequest{Deleted: deleted, TotalDuration: s.duration})
	if s.duration <= 0 {
		kept = []segment.TimeRange{}
	}
	words := s.words.Words()
	views := make([]WordView, len(words))
	for i, w := range words {
		views[i] = WordView{
			Word:    w,
			Index:   i,
			Deleted: transcript.IsWordDeleted(w, deleted),
			Active:  transcript.IsWordActive(w, s.position),
		}
	}
	return Snapshot{
		ID:                s.ID,
		FileName:          s.FileName,
		Language:          s.language,
		Duration:          s.duration,
		RemainingDuration: segment.TotalDuration(kept),
		Position:          s.position,
		Words:             views,
		Deleted:           deleted,
		Kept:              kept,
		SegmentCount:      len(deleted),
		CanUndo:           len(s.deleted.History()) > 0,
	}
}

// Search finds words containing query with their transcript indices.
func (s *Session) Search(query string) []transcript.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transcript.Search(query, s.words.Words())
}

// Subtitles returns the transcript words for subtitle output. With edited set
// the deleted words are dropped and the rest shifted onto the cut timeline.
func (s *Session) Subtitles(edited bool) []transcript.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	words := s.words.Words()
	if !edited {
		return words
	}
	deleted := s.deleted.Ranges()
	kept := pipeline.Keep(pipeline.ExportRequest{Deleted: deleted, TotalDuration: s.duration})
	return transcript.RebaseWords(transcript.KeptWords(words, deleted), kept)
}
