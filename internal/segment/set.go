package segment

// Set is the deleted-segment set of one editing session. It keeps the raw,
// pre-merge insertion history as the source of truth so that Undo removes exactly
// the most recent insertion even when it fused with earlier ones.
//
// Set is not safe for concurrent use; the owning session serializes access.
type Set struct {
	history []TimeRange
	merged  []TimeRange
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{merged: []TimeRange{}}
}

// Restore rebuilds a set from a persisted insertion history.
func Restore(history []TimeRange) *Set {
	s := NewSet()
	for _, r := range history {
		if r.Valid() {
			s.history = append(s.history, r)
		}
	}
	s.remerge()
	return s
}

// Insert records a deletion. Invalid ranges are ignored and reported as false.
func (s *Set) Insert(r TimeRange) bool {
	if !r.Valid() {
		return false
	}
	s.history = append(s.history, r)
	s.merged = InsertAndMerge(s.merged, r)
	return true
}

// Undo drops the most recent insertion and rebuilds the merged view from the
// remaining history. It returns false when there is nothing to undo.
func (s *Set) Undo() bool {
	if len(s.history) == 0 {
		return false
	}
	s.history = s.history[:len(s.history)-1]
	s.remerge()
	return true
}

// Clear empties the set.
func (s *Set) Clear() {
	s.history = nil
	s.merged = []TimeRange{}
}

// Ranges returns a copy of the merged, sorted, non-overlapping ranges.
func (s *Set) Ranges() []TimeRange {
	out := make([]TimeRange, len(s.merged))
	copy(out, s.merged)
	return out
}

// History returns a copy of the raw insertion history, oldest first.
func (s *Set) History() []TimeRange {
	out := make([]TimeRange, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of merged ranges.
func (s *Set) Len() int {
	return len(s.merged)
}

// Empty reports whether no time is marked deleted.
func (s *Set) Empty() bool {
	return len(s.merged) == 0
}

// Duration returns the total deleted time in seconds.
func (s *Set) Duration() float64 {
	return TotalDuration(s.merged)
}

func (s *Set) remerge() {
	merged := []TimeRange{}
	for _, r := range s.history {
		merged = InsertAndMerge(merged, r)
	}
	s.merged = merged
}
