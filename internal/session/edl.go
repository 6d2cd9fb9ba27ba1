package session

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/segment"
)

// EDLVersion is the edit decision list format written by MarshalEDL.
const EDLVersion = 1

// EDL is an edit decision list: the deletions applied to one source video.
// Deleted is the raw history so Undo keeps working after an import; Kept is
// informational and ignored on import.
type EDL struct {
	Version  int                      `yaml:"version"`
	Source   string                   `yaml:"source"`
	Duration float64                  `yaml:"duration"`
	Deleted  []segment.TimeRange      `yaml:"deleted"`
	Kept     []segment.TimeRange      `yaml:"kept,omitempty"`
	Export   *pipeline.ExportSettings `yaml:"export,omitempty"`
}

// EDL captures the session's edit.
func (s *Session) EDL() EDL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EDL{
		Version:  EDLVersion,
		Source:   s.FileName,
		Duration: s.duration,
		Deleted:  s.deleted.History(),
		Kept:     pipeline.Keep(pipeline.ExportRequest{Deleted: s.deleted.Ranges(), TotalDuration: s.duration}),
	}
}

// ApplyEDL replaces the session's deletions with those of e, clipped to the
// session duration.
func (s *Session) ApplyEDL(e EDL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := e.Deleted
	if s.duration > 0 {
		history = segment.Clip(history, s.duration)
	}
	s.deleted = segment.Restore(history)
}

// Ranges returns the merged deleted ranges of the list.
func (e EDL) Ranges() []segment.TimeRange {
	return segment.Merge(e.Deleted)
}

// MarshalEDL encodes e as YAML.
func MarshalEDL(e EDL) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseEDL decodes a YAML edit decision list. Unknown fields are rejected.
func ParseEDL(data []byte) (EDL, error) {
	var e EDL
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return EDL{}, fmt.Errorf("parse edl: %w", err)
	}
	if e.Version > EDLVersion {
		return EDL{}, fmt.Errorf("parse edl: unsupported version %d", e.Version)
	}
	for i, r := range e.Deleted {
		if !r.Valid() {
			return EDL{}, fmt.Errorf("parse edl: deleted[%d] %s is not a valid range", i, r)
		}
	}
	if e.Export != nil {
		settings := e.Export.WithDefaults()
		if err := settings.Validate(); err != nil {
			return EDL{}, fmt.Errorf("parse edl: %w", err)
		}
		e.Export = &settings
	}
	return e, nil
}
