package qc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per case in a directory. Writes go through a
// temp file followed by an atomic rename, so a crash mid-write leaves either
// the old record or the new one, never a torn file.
type FileStore struct {
	dir string
}

var _ CaseStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("qc: store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("qc: create store directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Create implements CaseStore. The final file is produced with os.Link from
// the fully written temp file, which fails if the id already exists.
func (s *FileStore) Create(ctx context.Context, c *Case) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := s.writeTemp(c)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, s.path(c.ID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("qc: case %q: %w", c.ID, ErrDuplicateID)
		}
		return fmt.Errorf("qc: create case %q: %w", c.ID, err)
	}
	return nil
}

// Put implements CaseStore.
func (s *FileStore) Put(ctx context.Context, c *Case) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(c.ID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("qc: case %q: %w", c.ID, ErrNotFound)
		}
		return fmt.Errorf("qc: stat case %q: %w", c.ID, err)
	}
	tmp, err := s.writeTemp(c)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("qc: replace case %q: %w", c.ID, err)
	}
	return nil
}

// Get implements CaseStore.
func (s *FileStore) Get(ctx context.Context, id string) (*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("qc: case %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("qc: read case %q: %w", id, err)
	}
	var c Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("qc: decode case %q: %w", id, err)
	}
	return &c, nil
}

// List implements CaseStore. Unreadable entries are skipped rather than
// failing the whole listing.
func (s *FileStore) List(ctx context.Context) ([]*Case, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("qc: list store directory: %w", err)
	}
	var cases []*Case
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := s.Get(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// writeTemp marshals the case into a unique temp file in the store
// directory and returns its path.
func (s *FileStore) writeTemp(c *Case) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("qc: encode case %q: %w", c.ID, err)
	}
	f, err := os.CreateTemp(s.dir, ".tmp-"+c.ID+"-*")
	if err != nil {
		return "", fmt.Errorf("qc: create temp file for case %q: %w", c.ID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("qc: write temp file for case %q: %w", c.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("qc: close temp file for case %q: %w", c.ID, err)
	}
	return f.Name(), nil
}
