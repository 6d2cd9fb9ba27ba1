package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIsVideoFile(t *testing.T) {
	for name, want := range map[string]bool{"a.MP4": true, "b.webm": true, "c.srt": false, "d": false} {
		if IsVideoFile(name) != want {
			t.Errorf("IsVideoFile(%q) != %v", name, want)
		}
	}
}

func TestLibrary(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "talk.mp4"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden.mp4"))
	touch(t, filepath.Join(root, "shows", "Episode Talk.mkv"))

	lib := NewLibrary(root)
	entries, err := lib.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || !entries[0].IsDir || entries[1].Name != "talk.mp4" {
		t.Errorf("entries = %+v", entries)
	}

	found, err := lib.Search("TALK", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Errorf("found = %+v", found)
	}

	if _, err := lib.Resolve("../etc/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("traversal = %v", err)
	}
	p, err := lib.Resolve("shows/Episode Talk.mkv")
	if err != nil || !strings.HasPrefix(p, root) {
		t.Errorf("resolve = %q, %v", p, err)
	}
}

func TestUploads(t *testing.T) {
	u, err := NewUploads(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	path, n, err := u.Save("abc", "My Clip.MOV", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "abc.mov" || n != 11 {
		t.Errorf("path = %q, n = %d", path, n)
	}
	if !u.Owns(path) || u.Owns("/etc/passwd") {
		t.Error("ownership check")
	}
	if err := u.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file not removed")
	}
	if err := u.Remove("/etc/passwd"); err != nil {
		t.Error("foreign path should be ignored")
	}
}
