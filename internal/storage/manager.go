package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taxonomix/backend/internal/models"
	"github.com/taxonomix/backend/internal/parser"
)

// ErrNotFound is returned when no file exists under the requested name.
var ErrNotFound = errors.New("file not found")

// ErrInvalidName is returned for names that are empty or escape the store.
var ErrInvalidName = errors.New("invalid file name")

// FileInfo describes a stored file.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// LocalStore keeps uploaded inputs and cleaned outputs on the local
// filesystem, keyed by the submitted filename.
type LocalStore struct {
	uploadDir string
	outputDir string
	delimiter rune
}

// NewLocalStore creates the upload and output directories if needed.
func NewLocalStore(uploadDir, outputDir string) (*LocalStore, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return &LocalStore{uploadDir: uploadDir, outputDir: outputDir, delimiter: ','}, nil
}

// SaveUpload stores the raw bytes of an uploaded file and returns its size.
func (s *LocalStore) SaveUpload(name string, r io.Reader) (int64, error) {
	path, err := s.path(s.uploadDir, name)
	if err != nil {
		return 0, err
	}
	return writeAtomic(path, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
}

// OpenUpload opens a previously saved upload.
func (s *LocalStore) OpenUpload(name string) (*os.File, error) {
	f, _, err := s.open(s.uploadDir, name)
	return f, err
}

// Save writes t as the cleaned output for name.
func (s *LocalStore) Save(_ context.Context, name string, t *models.Table) error {
	path, err := s.path(s.outputDir, name)
	if err != nil {
		return err
	}
	_, err = writeAtomic(path, func(w io.Writer) (int64, error) {
		return 0, parser.WriteTable(w, t, s.delimiter)
	})
	return err
}

// Open opens the cleaned output for name.
func (s *LocalStore) Open(name string) (*os.File, *FileInfo, error) {
	return s.open(s.outputDir, name)
}

// List returns the most recent outputs, newest first.
func (s *LocalStore) List(limit int) ([]*FileInfo, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	var list []*FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, &FileInfo{Name: e.Name(), Size: fi.Size(), ModifiedAt: fi.ModTime()})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ModifiedAt.After(list[j].ModifiedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *LocalStore) open(dir, name string) (*os.File, *FileInfo, error) {
	path, err := s.path(dir, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	return f, &FileInfo{Name: filepath.Base(path), Size: fi.Size(), ModifiedAt: fi.ModTime()}, nil
}

// path resolves name inside dir, rejecting anything that is not a plain file name.
func (s *LocalStore) path(dir, name string) (string, error) {
	clean := filepath.Base(filepath.Clean(name))
	if name == "" || clean != name || clean == "." || clean == ".." || strings.HasPrefix(clean, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, clean), nil
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place, so readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tmp.Name()

	n, err := write(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("writing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("renaming file: %w", err)
	}
	return n, nil
}
