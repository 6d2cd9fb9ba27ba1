package transcript

// Store holds the ordered words of one transcript. Words are immutable once
// stored; re-transcription replaces the whole sequence.
type Store struct {
	words []Word
}

// NewStore returns a store holding a copy of words.
func NewStore(words []Word) *Store {
	s := &Store{}
	s.Replace(words)
	return s
}

// Replace swaps in a new word sequence.
func (s *Store) Replace(words []Word) {
	cp := make([]Word, len(words))
	copy(cp, words)
	s.words = cp
}

// Words returns a copy of the stored words.
func (s *Store) Words() []Word {
	out := make([]Word, len(s.words))
	copy(out, s.words)
	return out
}

// Len returns the number of words.
func (s *Store) Len() int {
	return len(s.words)
}

// At returns the word at index i.
func (s *Store) At(i int) (Word, bool) {
	if i < 0 || i >= len(s.words) {
		return Word{}, false
	}
	return s.words[i], true
}

// Text returns the transcript as plain text.
func (s *Store) Text() string {
	return Text(s.words)
}

// ActiveIndex returns the index of the word being spoken at t, or -1.
func (s *Store) ActiveIndex(t float64) int {
	for i, w := range s.words {
		if IsWordActive(w, t) {
			return i
		}
	}
	return -1
}
