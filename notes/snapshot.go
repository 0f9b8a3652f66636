package notes

import "time"

// SnapshotVersion is the current on-disk format.
const SnapshotVersion = 1

// Snapshot is the persisted form of a Session.
type Snapshot struct {
	Format     int       `json:"format" jsonschema:"required"`
	ID         string    `json:"id" jsonschema:"required"`
	Version    uint64    `json:"version" jsonschema:"required"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	WordBudget int       `json:"word_budget,omitempty"`
	Notes      Notes     `json:"notes" jsonschema:"required"`
}

// Snapshot captures the session's current state.
func (s *Session) Snapshot(wordBudget int) Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return Snapshot{
		Format:     SnapshotVersion,
		ID:         s.id,
		Version:    s.version,
		UpdatedAt:  s.updated,
		WordBudget: wordBudget,
		Notes:      s.notes.Clone(),
	}
}

// Resume rebuilds a session from a snapshot.
func (snap Snapshot) Resume(updater Updater) *Session {
	s := RestoreSession(snap.ID, updater, snap.Notes.Clone(), snap.Version)
	s.updated = snap.UpdatedAt
	return s
}
