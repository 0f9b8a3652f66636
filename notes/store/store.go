// Package store persists session snapshots so a ledger can outlive the process that built it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/team-of-2/novelize/notes"
)

// ErrNotFound is returned by Load and Delete when no snapshot exists for the id.
var ErrNotFound = errors.New("snapshot not found")

// Store loads and saves session snapshots keyed by session id.
type Store interface {
	Load(ctx context.Context, id string) (notes.Snapshot, error)
	Save(ctx context.Context, snap notes.Snapshot) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

const snapshotExt = ".json"

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("session id %q contains a path separator", id)
	}
	return nil
}

func decodeSnapshot(b []byte) (notes.Snapshot, error) {
	var snap notes.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return notes.Snapshot{}, fmt.Errorf("unmarshal: %w", err)
	}
	if snap.Format == 0 {
		snap.Format = notes.SnapshotVersion
	}
	if snap.Format > notes.SnapshotVersion {
		return notes.Snapshot{}, fmt.Errorf("unsupported snapshot format %d", snap.Format)
	}
	if snap.Notes == nil {
		snap.Notes = notes.Notes{}
	}
	return snap, nil
}
