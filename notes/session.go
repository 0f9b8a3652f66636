package notes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Updater is satisfied by *Accumulator.
type Updater interface {
	Update(ctx context.Context, paragraph string, prev Notes) (Notes, Report, error)
}

var _ Updater = (*Accumulator)(nil)

// ErrStaleVersion reports a result computed against a ledger version that has since moved.
var ErrStaleVersion = errors.New("ledger version moved")

// Session owns one ledger across processing calls. Update calls are serialized, so a later call
// always starts from the result of the earlier one.
type Session struct {
	id      string
	updater Updater

	mu      sync.Mutex // serializes Update
	stateMu sync.RWMutex
	notes   Notes
	version uint64
	updated time.Time
}

// NewSession starts a session from initial (nil means empty).
func NewSession(updater Updater, initial Notes) *Session {
	return RestoreSession(NewSessionID(), updater, initial, 0)
}

// RestoreSession resumes a persisted session.
func RestoreSession(id string, updater Updater, initial Notes, version uint64) *Session {
	if initial == nil {
		initial = Notes{}
	}
	if id == "" {
		id = NewSessionID()
	}
	return &Session{id: id, updater: updater, notes: initial, version: version}
}

// NewSessionID returns a lexically sortable session identifier.
func NewSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func (s *Session) ID() string { return s.id }

// Notes returns the current ledger. Callers must treat it as read-only.
func (s *Session) Notes() Notes {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.notes
}

// Current returns the ledger together with the version it belongs to.
func (s *Session) Current() (Notes, uint64) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.notes, s.version
}

// Version increments each time the ledger is replaced.
func (s *Session) Version() uint64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.version
}

// UpdatedAt is the time of the last replacement, zero if none.
func (s *Session) UpdatedAt() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.updated
}

// Update processes one paragraph against the current ledger and stores the result.
// A failed call leaves the ledger untouched.
func (s *Session) Update(ctx context.Context, paragraph string) (Notes, Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.RLock()
	prev, base := s.notes, s.version
	s.stateMu.RUnlock()

	next, report, err := s.updater.Update(ctx, paragraph, prev)
	if err != nil {
		return prev, report, err
	}
	if report.NoCharactersFound {
		return prev, report, nil
	}
	if !s.storeIfCurrent(base, next) {
		return s.Notes(), report, fmt.Errorf("Update: %w", ErrStaleVersion)
	}
	return next, report, nil
}

// ApplyIfCurrent stores notes only when the ledger is still at version. It waits for an in-flight
// Update and reports whether it applied.
func (s *Session) ApplyIfCurrent(version uint64, notes Notes) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeIfCurrent(version, notes)
}

func (s *Session) storeIfCurrent(version uint64, n Notes) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.version != version {
		return false
	}
	s.notes = n
	s.version++
	s.updated = time.Now()
	return true
}

// Reset clears the ledger.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(Notes{})
}

func (s *Session) replace(n Notes) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.notes = n
	s.version++
	s.updated = time.Now()
}
