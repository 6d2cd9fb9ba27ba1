package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/video-stream/transcut/internal/db"
	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/storage"
	"github.com/video-stream/transcut/internal/transcript"
)

func newManager(t *testing.T, probe ProbeFunc) (*Manager, *db.Database) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	uploads, err := storage.NewUploads(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(database, uploads, probe), database
}

func fixedProbe(d float64) ProbeFunc {
	return func(ctx context.Context, path string) (float64, error) { return d, nil }
}

func TestManagerCreateAndReload(t *testing.T) {
	m, database := newManager(t, fixedProbe(60))
	s, err := m.Create(context.Background(), 1, "talk.mp4", strings.NewReader("data"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Duration() != 60 || s.FileName != "talk.mp4" {
		t.Errorf("session = %+v", s)
	}

	m.SaveTranscript(s, []transcript.Word{{Text: "hi", Start: 1, End: 2, Confidence: 1}}, "en", "fake")
	s.DeleteTimeRange(10, 20)
	s.DeleteTimeRange(15, 25)
	s.Seek(3)
	if err := m.SaveEdits(s); err != nil {
		t.Fatal(err)
	}

	fresh := NewManager(database, nil, fixedProbe(60))
	got, err := fresh.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Words()) != 1 || got.Language() != "en" || got.Position() != 3 {
		t.Errorf("reloaded = %+v", got.Snapshot())
	}
	if len(got.History()) != 2 || !got.Undo() || got.Ranges()[0].End != 20 {
		t.Errorf("history = %v", got.History())
	}

	list, _ := fresh.List(1)
	if len(list) != 1 || list[0].ID != s.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestManagerRejectsNonVideo(t *testing.T) {
	m, _ := newManager(t, fixedProbe(60))
	_, err := m.Create(context.Background(), 1, "notes.txt", strings.NewReader("x"))
	if !errors.Is(err, pipeline.ErrUnsupportedFileType) {
		t.Errorf("err = %v", err)
	}

	failing := func(ctx context.Context, path string) (float64, error) { return 0, errors.New("invalid data") }
	m2, _ := newManager(t, failing)
	_, err = m2.Create(context.Background(), 1, "broken.mp4", strings.NewReader("x"))
	if pipeline.KindOf(err) != pipeline.KindUnsupportedFileType {
		t.Errorf("err = %v", err)
	}
	if list, _ := m2.List(0); len(list) != 0 {
		t.Errorf("rejected upload persisted: %v", list)
	}
}

func TestManagerDelete(t *testing.T) {
	m, _ := newManager(t, fixedProbe(5))
	s, err := m.Create(context.Background(), 1, "a.webm", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := m.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing = %v", err)
	}
}
