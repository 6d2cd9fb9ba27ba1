package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Uploads stores uploaded source videos and exported files under one
// directory.
type Uploads struct {
	Dir string
}

func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Uploads{Dir: dir}, nil
}

// Save writes r to <id><ext of name> atomically and returns the path and size.
func (u *Uploads) Save(id, name string, r io.Reader) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(name))
	dst := filepath.Join(u.Dir, id+ext)

	tmp, err := os.CreateTemp(u.Dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", 0, err
	}
	return dst, n, nil
}

// Owns reports whether path lives in the uploads directory.
func (u *Uploads) Owns(path string) bool {
	rel, err := filepath.Rel(u.Dir, path)
	return err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// Remove deletes a stored file. Paths outside the directory are ignored.
func (u *Uploads) Remove(path string) error {
	if !u.Owns(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
