package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/video-stream/transcut/internal/auth"
	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/transcript"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestEnsureAdmin(t *testing.T) {
	d := openTestDB(t)
	if err := d.EnsureAdmin("admin", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := d.EnsureAdmin("other", "pw2"); err != nil {
		t.Fatal(err)
	}
	u, err := d.GetUserByUsername("admin")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != "admin" || !auth.CheckPassword("pw", u.Password) {
		t.Errorf("user = %+v", u)
	}
	if _, err := d.GetUserByUsername("other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second admin created: %v", err)
	}
	if byID, err := d.GetUserByID(u.ID); err != nil || byID.Username != "admin" {
		t.Errorf("by id = %+v, %v", byID, err)
	}
}

func TestSettings(t *testing.T) {
	d := openTestDB(t)
	if got := d.GetSetting("missing", "dflt"); got != "dflt" {
		t.Errorf("default = %q", got)
	}
	d.SetSetting("export_format", "mp4")
	d.SetSetting("export_format", "webm")
	all, err := d.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if all["export_format"] != "webm" || len(all) != 1 {
		t.Errorf("settings = %v", all)
	}
}

func TestSessionLifecycle(t *testing.T) {
	d := openTestDB(t)
	s := &models.Session{ID: "s1", OwnerID: 1, FileName: "talk.mp4", VideoPath: "/data/uploads/s1.mp4", Duration: 90}
	if err := d.CreateSession(s); err != nil {
		t.Fatal(err)
	}
	d.CreateSession(&models.Session{ID: "s2", OwnerID: 2, FileName: "b.mp4", VideoPath: "/b"})

	got, err := d.GetSession("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FileName != "talk.mp4" || got.Duration != 90 || got.VideoPath != "/data/uploads/s1.mp4" {
		t.Errorf("session = %+v", got)
	}

	mine, _ := d.ListSessions(1)
	all, _ := d.ListSessions(0)
	if len(mine) != 1 || len(all) != 2 {
		t.Errorf("mine = %d, all = %d", len(mine), len(all))
	}

	if err := d.UpdateSessionMeta("s1", "en", 90, 12.5); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateSessionMeta("nope", "", 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing = %v", err)
	}

	history := []segment.TimeRange{{Start: 5, End: 10}, {Start: 8, End: 12}}
	if err := d.SaveDeletions("s1", history); err != nil {
		t.Fatal(err)
	}
	loaded, err := d.LoadDeletions("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || loaded[1] != history[1] {
		t.Errorf("history = %v", loaded)
	}
	d.SaveDeletions("s1", history[:1])
	if loaded, _ = d.LoadDeletions("s1"); len(loaded) != 1 {
		t.Errorf("history after replace = %v", loaded)
	}

	words := []transcript.Word{{Text: "hi", Start: 0, End: 0.5, Confidence: 0.9}}
	if err := d.SaveTranscript("s1", "en", "whisper.cpp", words); err != nil {
		t.Fatal(err)
	}
	gotWords, lang, err := d.LoadTranscript("s1")
	if err != nil || lang != "en" || len(gotWords) != 1 || gotWords[0] != words[0] {
		t.Errorf("transcript = %v %q %v", gotWords, lang, err)
	}
	if w, _, err := d.LoadTranscript("s2"); w != nil || err != nil {
		t.Errorf("untranscribed = %v, %v", w, err)
	}

	if err := d.DeleteSession("s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete = %v", err)
	}
	if loaded, _ = d.LoadDeletions("s1"); len(loaded) != 0 {
		t.Errorf("deletions survived: %v", loaded)
	}
}

func TestSpeechBackends(t *testing.T) {
	d := openTestDB(t)
	defaults := []models.SpeechBackend{
		{Name: "local", BackendType: "whisper.cpp", URL: "http://whisper:8178", Enabled: true, Priority: 0},
		{Name: "cloud", BackendType: "openai", APIKey: "sk-1", Enabled: true, Priority: 10},
	}
	if err := d.SeedSpeechBackends(defaults); err != nil {
		t.Fatal(err)
	}
	if err := d.SeedSpeechBackends(defaults); err != nil {
		t.Fatal(err)
	}
	list, err := d.ListSpeechBackends()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "local" || list[1].APIKey != "sk-1" {
		t.Fatalf("backends = %+v", list)
	}

	cloud := list[1]
	cloud.APIKey = ""
	cloud.Enabled = false
	if err := d.UpdateSpeechBackend(&cloud); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetSpeechBackend(cloud.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "sk-1" || got.Enabled {
		t.Errorf("updated = %+v", got)
	}

	d.DeleteSpeechBackend(cloud.ID)
	if _, err := d.GetSpeechBackend(cloud.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete = %v", err)
	}
}
