package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/fileutils"
)

// FileStore keeps one JSON file per session under Dir.
type FileStore struct {
	fs  afero.Fs
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore stores snapshots under dir on fsys. A nil fsys means the OS filesystem.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStore{fs: fsys, dir: dir}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// Load reads the snapshot for id.
func (s *FileStore) Load(ctx context.Context, id string) (notes.Snapshot, error) {
	if err := validateID(id); err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load: %w", err)
	}
	b, ok, err := fileutils.ReadFileIfExists(s.fs, s.path(id))
	if err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load: read file: %w", err)
	}
	if !ok {
		return notes.Snapshot{}, fmt.Errorf("Load %s: %w", id, ErrNotFound)
	}
	snap, err := decodeSnapshot(b)
	if err != nil {
		return notes.Snapshot{}, fmt.Errorf("Load %s: %w", id, err)
	}
	return snap, nil
}

// Save writes the snapshot atomically, replacing any previous one.
func (s *FileStore) Save(ctx context.Context, snap notes.Snapshot) error {
	if err := validateID(snap.ID); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if snap.Notes == nil {
		snap.Notes = notes.Notes{}
	}
	if err := fileutils.WriteJSONFileAtomic(s.fs, s.path(snap.ID), snap, true); err != nil {
		return fmt.Errorf("Save %s: %w", snap.ID, err)
	}
	return nil
}

// List returns stored session ids in sorted order. A missing directory lists nothing.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("List: read dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot for id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if !fileutils.FileExists(s.fs, s.path(id)) {
		return fmt.Errorf("Delete %s: %w", id, ErrNotFound)
	}
	if err := s.fs.Remove(s.path(id)); err != nil {
		return fmt.Errorf("Delete %s: %w", id, err)
	}
	return nil
}
