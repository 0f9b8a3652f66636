package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team-of-2/novelize/notes"
)

// mockS3 keeps objects in memory and pages List results two at a time.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	lists   int
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = b
	m.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *mockS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func sampleSnapshot(id string) notes.Snapshot {
	return notes.Snapshot{
		Format:     notes.SnapshotVersion,
		ID:         id,
		Version:    3,
		UpdatedAt:  time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		WordBudget: 50,
		Notes: notes.Notes{
			"Alice": notes.SummaryEntry("went to the market"),
			"Bob":   notes.ActionsEntry("helped her", "carried the basket"),
		},
	}
}

// exerciseStore runs the behavior every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Save(ctx, sampleSnapshot(id)))
	}

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	want := sampleSnapshot("a")
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, want.Notes, got.Notes)

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, s.Delete(ctx, "b"))
	err = s.Delete(ctx, "b")
	assert.True(t, errors.Is(err, ErrNotFound))

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)

	assert.Error(t, s.Save(ctx, sampleSnapshot("")))
	_, err = s.Load(ctx, "../etc/passwd")
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewFileStore(afero.NewMemMapFs(), "/var/novelize"))
}

func TestS3Store(t *testing.T) {
	t.Parallel()

	client := newMockS3()
	exerciseStore(t, NewS3StoreWithClient(client, "bucket", "/novelize/dev/"))

	_, ok := client.objects["novelize/dev/sessions/a.json"]
	assert.True(t, ok, "keys are placed under the trimmed prefix")
	assert.Equal(t, "3", client.meta["novelize/dev/sessions/a.json"]["session-version"])
}

func TestS3Store_ListFollowsContinuationTokens(t *testing.T) {
	t.Parallel()

	client := newMockS3()
	s := NewS3StoreWithClient(client, "bucket", "")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(context.Background(), sampleSnapshot(fmt.Sprintf("s%d", i))))
	}
	client.objects["sessions/nested/x.json"] = []byte("{}")

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4"}, ids)
	assert.Equal(t, 3, client.lists)
}

func TestFileStore_RejectsNewerFormat(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/d/x.json", []byte(`{"format":99,"id":"x","version":1,"notes":{}}`), 0o644))

	_, err := NewFileStore(fsys, "/d").Load(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported snapshot format 99")
}

func TestFileStore_LoadDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/d/x.json", []byte(`{"id":"x","version":2}`), 0o644))

	snap, err := NewFileStore(fsys, "/d").Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, notes.SnapshotVersion, snap.Format)
	assert.NotNil(t, snap.Notes)
}
