package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingUpdater appends one action per call and fails when the paragraph says so.
type countingUpdater struct {
	mu      sync.Mutex
	running int
	overlap bool
}

func (u *countingUpdater) Update(ctx context.Context, paragraph string, prev Notes) (Notes, Report, error) {
	u.mu.Lock()
	u.running++
	if u.running > 1 {
		u.overlap = true
	}
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running--
		u.mu.Unlock()
	}()

	switch paragraph {
	case "fail":
		return prev, Report{}, errors.New("boom")
	case "none":
		return prev, Report{NoCharactersFound: true}, nil
	}
	return Merge(prev, []ParsedPair{{Name: "Alice", Action: paragraph}}), Report{Pairs: 1}, nil
}

func TestSession_SerializesConcurrentUpdates(t *testing.T) {
	t.Parallel()

	u := &countingUpdater{}
	s := NewSession(u, nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Update(context.Background(), fmt.Sprintf("p%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.False(t, u.overlap, "updates overlapped")
	assert.Len(t, s.Notes()["Alice"].Actions, n, "no update was lost")
	assert.Equal(t, uint64(n), s.Version())
}

func TestSession_FailureAndNoOpKeepLedger(t *testing.T) {
	t.Parallel()

	s := NewSession(&countingUpdater{}, Notes{"Bob": SummaryEntry("waved")})

	_, _, err := s.Update(context.Background(), "fail")
	require.Error(t, err)
	_, report, err := s.Update(context.Background(), "none")
	require.NoError(t, err)
	assert.True(t, report.NoCharactersFound)

	assert.Equal(t, uint64(0), s.Version())
	assert.Equal(t, Notes{"Bob": SummaryEntry("waved")}, s.Notes())
	assert.True(t, s.UpdatedAt().IsZero())
}

func TestSession_ApplyIfCurrent(t *testing.T) {
	t.Parallel()

	s := NewSession(&countingUpdater{}, nil)
	v := s.Version()

	_, _, err := s.Update(context.Background(), "first")
	require.NoError(t, err)

	assert.False(t, s.ApplyIfCurrent(v, Notes{"Stale": SummaryEntry("x")}), "stale result must not apply")
	assert.True(t, s.ApplyIfCurrent(s.Version(), Notes{"Fresh": SummaryEntry("y")}))
	assert.Contains(t, s.Notes(), "Fresh")
}

// blockingUpdater holds each call open until release is closed.
type blockingUpdater struct {
	entered chan struct{}
	release chan struct{}
}

func (u *blockingUpdater) Update(ctx context.Context, paragraph string, prev Notes) (Notes, Report, error) {
	close(u.entered)
	<-u.release
	return Merge(prev, []ParsedPair{{Name: "Alice", Action: paragraph}}), Report{Pairs: 1}, nil
}

func TestSession_ApplyIfCurrentWaitsForInFlightUpdate(t *testing.T) {
	t.Parallel()

	u := &blockingUpdater{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(u, nil)
	base := s.Version()

	updated := make(chan error, 1)
	go func() {
		_, _, err := s.Update(context.Background(), "p")
		updated <- err
	}()
	<-u.entered

	applied := make(chan bool, 1)
	go func() { applied <- s.ApplyIfCurrent(base, Notes{"External": SummaryEntry("x")}) }()

	select {
	case got := <-applied:
		t.Fatalf("ApplyIfCurrent returned %v while an update was running", got)
	case <-time.After(50 * time.Millisecond):
	}
	close(u.release)

	require.NoError(t, <-updated)
	assert.False(t, <-applied, "result computed against the old version must not apply")
	assert.NotContains(t, s.Notes(), "External")
	assert.Equal(t, []string{"p"}, s.Notes()["Alice"].Actions)
	assert.Equal(t, uint64(1), s.Version())
}

func TestSession_ResetAndSnapshot(t *testing.T) {
	t.Parallel()

	s := NewSession(&countingUpdater{}, nil)
	_, _, err := s.Update(context.Background(), "first")
	require.NoError(t, err)

	snap := s.Snapshot(50)
	assert.Equal(t, SnapshotVersion, snap.Format)
	assert.Equal(t, s.ID(), snap.ID)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 50, snap.WordBudget)
	assert.Equal(t, []string{"first"}, snap.Notes["Alice"].Actions)

	resumed := snap.Resume(&countingUpdater{})
	assert.Equal(t, s.ID(), resumed.ID())
	assert.Equal(t, uint64(1), resumed.Version())

	s.Reset()
	assert.Empty(t, s.Notes())
	assert.Len(t, snap.Notes, 1, "snapshot is detached from the session")
}

func TestNewSessionID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewSessionID(), NewSessionID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
