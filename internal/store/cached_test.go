package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/models"
)

// memStore is an in-memory Store counting reads.
type memStore struct {
	mu     sync.Mutex
	snaps  map[string]*Snapshot
	nextID int64
	gets   int
	lists  int
}

func newMemStore() *memStore { return &memStore{snaps: map[string]*Snapshot{}} }

func (m *memStore) SaveSnapshot(_ context.Context, ref string, channels []models.Channel) (SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	info := SnapshotInfo{ID: m.nextID, Ref: ref, ChannelCount: len(channels), UpdatedAt: time.Now().UTC().Truncate(time.Second)}
	m.snaps[ref] = &Snapshot{SnapshotInfo: info, Channels: channels}
	return info, nil
}

func (m *memStore) GetSnapshot(_ context.Context, ref string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	s, ok := m.snaps[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSnapshots(context.Context) ([]SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := make([]SnapshotInfo, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s.SnapshotInfo)
	}
	return out, nil
}

func (m *memStore) DeleteSnapshot(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[ref]; !ok {
		return ErrNotFound
	}
	delete(m.snaps, ref)
	return nil
}

func setupCachedStore(t *testing.T) (*memStore, *CachedStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := newMemStore()
	return inner, NewCachedStore(inner, cache.NewFromClient(client))
}

func TestCachedStore_GetSnapshotIsCached(t *testing.T) {
	inner, s := setupCachedStore(t)
	ctx := context.Background()
	channels := []models.Channel{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}

	_, err := s.SaveSnapshot(ctx, "asset://channels.json", channels)
	require.NoError(t, err)

	first, err := s.GetSnapshot(ctx, "asset://channels.json")
	require.NoError(t, err)
	second, err := s.GetSnapshot(ctx, "asset://channels.json")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first.Ref, second.Ref)
	assert.Equal(t, 2, second.ChannelCount)
	assert.Equal(t, []string{"a", "b"}, []string{second.Channels[0].ID, second.Channels[1].ID})
}

func TestCachedStore_SaveInvalidates(t *testing.T) {
	inner, s := setupCachedStore(t)
	ctx := context.Background()

	_, err := s.SaveSnapshot(ctx, "ref", []models.Channel{{ID: "a"}})
	require.NoError(t, err)
	_, err = s.GetSnapshot(ctx, "ref")
	require.NoError(t, err)
	infos, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	_, err = s.SaveSnapshot(ctx, "ref", []models.Channel{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)

	snap, err := s.GetSnapshot(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ChannelCount)
	assert.Equal(t, 2, inner.gets)

	_, err = s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lists)
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	inner, s := setupCachedStore(t)
	ctx := context.Background()

	_, err := s.GetSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedStore_Delete(t *testing.T) {
	_, s := setupCachedStore(t)
	ctx := context.Background()

	_, err := s.SaveSnapshot(ctx, "ref", []models.Channel{{ID: "a"}})
	require.NoError(t, err)
	_, err = s.GetSnapshot(ctx, "ref")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSnapshot(ctx, "ref"))
	_, err = s.GetSnapshot(ctx, "ref")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSnapshot(ctx, "ref"), ErrNotFound)
}
