package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the library root.
var ErrOutsideRoot = errors.New("path outside library root")

type FileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".ts": true, ".mpg": true, ".mpeg": true,
}

func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Library is a read-only media directory that sessions can be opened from.
type Library struct {
	Root string
}

func NewLibrary(root string) *Library {
	return &Library{Root: root}
}

// Resolve maps a library-relative path to an absolute one.
func (l *Library) Resolve(rel string) (string, error) {
	absBase, err := filepath.Abs(l.Root)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return absFull, nil
}

// List returns the directories and video files directly under rel,
// directories first. Hidden entries are skipped.
func (l *Library) List(rel string) ([]FileEntry, error) {
	full, err := l.Resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	result := []FileEntry{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() && !IsVideoFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fe := FileEntry{
			Name:  entry.Name(),
			Path:  filepath.ToSlash(filepath.Join(rel, entry.Name())),
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			fe.Size = info.Size()
		}
		result = append(result, fe)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IsDir && !result[j].IsDir
	})
	return result, nil
}

// Search walks the library for video files whose name contains query.
func (l *Library) Search(query string, maxResults int) ([]FileEntry, error) {
	query = strings.ToLower(query)
	results := []FileEntry{}

	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if len(results) >= maxResults {
			return filepath.SkipAll
		}
		if strings.HasPrefix(d.Name(), ".") && path != l.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsVideoFile(d.Name()) {
			return nil
		}
		if strings.Contains(strings.ToLower(d.Name()), query) {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			rel, _ := filepath.Rel(l.Root, path)
			results = append(results, FileEntry{
				Name: d.Name(),
				Path: filepath.ToSlash(rel),
				Size: info.Size(),
			})
		}
		return nil
	})
	return results, err
}
