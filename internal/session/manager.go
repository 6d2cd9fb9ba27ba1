package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/ffmpeg"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/storage"
	"github.com/video-stream/transcut/internal/transcript"
)

var logger = logrus.WithField("component", "session")

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store persists sessions. *db.Database implements it.
type Store interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	ListSessions(ownerID int64) ([]*models.Session, error)
	UpdateSessionMeta(id, language string, duration, position float64) error
	DeleteSession(id string) error
	SaveDeletions(sessionID string, history []segment.TimeRange) error
	LoadDeletions(sessionID string) ([]segment.TimeRange, error)
	SaveTranscript(sessionID, language, engine string, words []transcript.Word) error
	LoadTranscript(sessionID string) ([]transcript.Word, string, error)
}

// ProbeFunc returns the duration of a playable video or an error.
type ProbeFunc func(ctx context.Context, path string) (float64, error)

// ProbeVideo probes path with ffprobe and requires a video stream.
func ProbeVideo(ctx context.Context, path string) (float64, error) {
	info, err := ffmpeg.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if !info.HasVideo() {
		return 0, fmt.Errorf("no video stream")
	}
	return info.DurationSeconds(), nil
}

// Manager creates, caches and persists sessions.
type Manager struct {
	store   Store
	uploads *storage.Uploads
	probe   ProbeFunc

	mu    sync.Mutex
	cache map[string]*Session
}

func NewManager(store Store, uploads *storage.Uploads, probe ProbeFunc) *Manager {
	if probe == nil {
		probe = ProbeVideo
	}
	return &Manager{
		store:   store,
		uploads: uploads,
		probe:   probe,
		cache:   make(map[string]*Session),
	}
}

func unsupported(name string, err error) error {
	return &pipeline.Error{
		Kind:    pipeline.KindUnsupportedFileType,
		Message: fmt.Sprintf("%q is not a supported video file.", name),
		Err:     err,
	}
}

// Create stores an uploaded file and opens a session for it. Files that are
// not videos are rejected before anything is persisted.
func (m *Manager) Create(ctx context.Context, ownerID int64, fileName string, r io.Reader) (*Session, error) {
	fileName = filepath.Base(fileName)
	if !storage.IsVideoFile(fileName) {
		return nil, unsupported(fileName, nil)
	}

	id := uuid.New().String()
	path, size, err := m.uploads.Save(id, fileName, r)
	if err != nil {
		return nil, err
	}
	s, err := m.open(ctx, id, ownerID, fileName, path)
	if err != nil {
		m.uploads.Remove(path)
		return nil, err
	}
	logger.WithFields(logrus.Fields{"session": id, "file": fileName, "size": size}).Info("session created from upload")
	return s, nil
}

// CreateFromPath opens a session on a video already on disk.
func (m *Manager) CreateFromPath(ctx context.Context, ownerID int64, path string) (*Session, error) {
	name := filepath.Base(path)
	if !storage.IsVideoFile(name) {
		return nil, unsupported(name, nil)
	}
	s, err := m.open(ctx, uuid.New().String(), ownerID, name, path)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"session": s.ID, "path": path}).Info("session created from library")
	return s, nil
}

func (m *Manager) open(ctx context.Context, id string, ownerID int64, name, path string) (*Session, error) {
	duration, err := m.probe(ctx, path)
	if err != nil {
		return nil, unsupported(name, err)
	}

	rec := &models.Session{ID: id, OwnerID: ownerID, FileName: name, VideoPath: path, Duration: duration}
	if err := m.store.CreateSession(rec); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s := New(id, name, path, duration)
	s.OwnerID = ownerID
	m.mu.Lock()
	m.cache[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a session, loading it from the store on first use.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache[id]; ok {
		return s, nil
	}

	rec, err := m.store.GetSession(id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	history, err := m.store.LoadDeletions(id)
	if err != nil {
		return nil, fmt.Errorf("load deletions: %w", err)
	}
	words, language, err := m.store.LoadTranscript(id)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if language == "" {
		language = rec.Language
	}

	s := Restore(rec.ID, rec.FileName, rec.VideoPath, rec.Duration, language, words, history)
	s.OwnerID = rec.OwnerID
	s.position = rec.Position
	m.cache[id] = s
	return s, nil
}

// List returns the stored session headers. ownerID 0 lists all.
func (m *Manager) List(ownerID int64) ([]*models.Session, error) {
	return m.store.ListSessions(ownerID)
}

// Delete removes a session and its uploaded source.
func (m *Manager) Delete(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSession(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()

	if m.uploads != nil {
		if err := m.uploads.Remove(s.VideoPath); err != nil {
			logger.WithError(err).WithField("session", id).Warn("failed to remove upload")
		}
	}
	logger.WithField("session", id).Info("session deleted")
	return nil
}

// SaveEdits persists the deletion history and playhead of s.
func (m *Manager) SaveEdits(s *Session) error {
	if err := m.store.SaveDeletions(s.ID, s.History()); err != nil {
		return fmt.Errorf("save deletions: %w", err)
	}
	return m.store.UpdateSessionMeta(s.ID, s.Language(), s.Duration(), s.Position())
}

// SaveTranscript stores new words on s and persists them.
func (m *Manager) SaveTranscript(s *Session, words []transcript.Word, language, engine string) error {
	s.SetTranscript(words, language)
	started := time.Now()
	if err := m.store.SaveTranscript(s.ID, s.Language(), engine, words); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	logger.WithFields(logrus.Fields{"session": s.ID, "words": len(words), "elapsed": time.Since(started)}).Debug("transcript saved")
	return m.store.UpdateSessionMeta(s.ID, s.Language(), s.Duration(), s.Position())
}
