package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/catalog"
	"github.com/voyagen/castvault/internal/config"
	"github.com/voyagen/castvault/internal/fetcher"
	"github.com/voyagen/castvault/internal/models"
	"github.com/voyagen/castvault/internal/player"
	"github.com/voyagen/castvault/internal/service"
	"github.com/voyagen/castvault/internal/store"
)

const catalogURL = "https://example.test/channels.json"

const catalogDoc = `{"channels":[
  {"id":"news","name":"News 24","type":"live","image":{"url":"https://img/news.png"},
   "sources":[{"name":"Studio A","contents":[{"streams":[{"stream_links":[
     {"type":"hls","url":"https://cdn/news.m3u8","request_headers":[{"key":"Referer","value":"https://site"}]}]}]}]}]},
  {"id":"film","name":"Feature Film","type":"single",
   "sources":[{"contents":[{"streams":[{"stream_links":[{"type":"mp4","url":"https://cdn/film.mp4"}]}]}]}]},
  {"id":"broken","name":"Broken","sources":[]}
]}`

// memStore is an in-memory snapshot store.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]*store.Snapshot
}

func newMemStore() *memStore { return &memStore{snaps: map[string]*store.Snapshot{}} }

func (m *memStore) SaveSnapshot(_ context.Context, ref string, channels []models.Channel) (store.SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := store.SnapshotInfo{ID: int64(len(m.snaps) + 1), Ref: ref, ChannelCount: len(channels), UpdatedAt: time.Now()}
	m.snaps[ref] = &store.Snapshot{SnapshotInfo: info, Channels: channels}
	return info, nil
}

func (m *memStore) GetSnapshot(_ context.Context, ref string) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListSnapshots(context.Context) ([]store.SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SnapshotInfo, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s.SnapshotInfo)
	}
	return out, nil
}

func (m *memStore) DeleteSnapshot(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[ref]; !ok {
		return store.ErrNotFound
	}
	delete(m.snaps, ref)
	return nil
}

type testEnv struct {
	srv     *Server
	fetches *atomic.Int32
	store   *memStore
}

func newTestEnv(t *testing.T, body string, withStore bool, rds *cache.Redis) testEnv {
	t.Helper()
	fetches := &atomic.Int32{}
	src := fetcher.SourceFunc(func(ctx context.Context, ref string) ([]byte, error) {
		fetches.Add(1)
		if ref != catalogURL {
			return nil, errors.New("unknown ref")
		}
		return []byte(body), nil
	})
	c := catalog.New(src, fetcher.SourceFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("no assets")
	}))

	env := testEnv{fetches: fetches}
	var st store.Store
	if withStore {
		env.store = newMemStore()
		st = env.store
	}
	cfg := &config.Config{CatalogURL: catalogURL, ServerPort: "0"}
	env.srv = New(cfg, service.NewSyncer(c, st, nil), st, rds)
	return env
}

func newRedis(t *testing.T) *cache.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewFromClient(client)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["populated"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth_ReportsRefreshState(t *testing.T) {
	rds := newRedis(t)
	env := newTestEnv(t, catalogDoc, false, rds)
	ctx := context.Background()

	require.NoError(t, cache.Enqueue(ctx, rds, cache.DefaultQueue, cache.NewRefreshJob(catalogURL, false)))
	unlock, err := cache.TryLock(ctx, rds, service.RefreshLockName(catalogURL), time.Minute)
	require.NoError(t, err)
	defer unlock()

	body := decode[map[string]any](t, do(t, env.srv, http.MethodGet, "/api/health", ""))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["queued_refreshes"])
	assert.Equal(t, true, body["refreshing"])
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	rec := do(t, env.srv, http.MethodOptions, "/api/channels", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, env.fetches.Load())
}

func TestListChannels_LoadsLazilyOnce(t *testing.T) {
	env := newTestEnv(t, catalogDoc, true, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[channelsResponse](t, rec)
	assert.Equal(t, catalogURL, resp.Source)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "news", resp.Channels[0].ID)
	assert.Equal(t, "film", resp.Channels[1].ID)

	rec = do(t, env.srv, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.fetches.Load())

	snap, err := env.store.GetSnapshot(context.Background(), catalogURL)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ChannelCount)
}

func TestListChannels_Filters(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	resp := decode[channelsResponse](t, do(t, env.srv, http.MethodGet, "/api/channels?type=single", ""))
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "film", resp.Channels[0].ID)

	resp = decode[channelsResponse](t, do(t, env.srv, http.MethodGet, "/api/channels?q=news", ""))
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "news", resp.Channels[0].ID)
}

func TestListChannels_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t, `{"channels":[]}`, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/channels", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, errCatalogEmpty.Error(), apiErr.Detail)

	// Empty builds are not memoized, so the next request fetches again.
	do(t, env.srv, http.MethodGet, "/api/channels", "")
	assert.EqualValues(t, 2, env.fetches.Load())
}

func TestGetChannel(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/channels/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ch := decode[models.Channel](t, rec)
	assert.Equal(t, "News 24", ch.Name)

	rec = do(t, env.srv, http.MethodGet, "/api/channels/broken", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayback(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	descs := decode[[]models.PlaybackDescriptor](t, do(t, env.srv, http.MethodGet, "/api/playback", ""))
	require.Len(t, descs, 2)

	rec := do(t, env.srv, http.MethodGet, "/api/playback/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	desc := decode[models.PlaybackDescriptor](t, rec)
	assert.Equal(t, "https://cdn/news.m3u8", desc.URL)
	assert.Equal(t, "application/x-mpegURL", desc.ContentType)
	assert.Equal(t, map[string]string{"Referer": "https://site"}, player.ExtractHeaders(desc.CustomData))

	rec = do(t, env.srv, http.MethodGet, "/api/playback/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCastRequest(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/playback/film/cast?autoplay=false&position=12.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	req := decode[player.CastLoadRequest](t, rec)
	assert.False(t, req.Autoplay)
	assert.InDelta(t, 12.5, req.CurrentTime, 0.001)
	assert.Equal(t, "https://cdn/film.mp4", req.Media.ContentID)
	assert.Equal(t, "video/mp4", req.Media.ContentType)

	rec = do(t, env.srv, http.MethodGet, "/api/playback/film/cast?position=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaylist(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/playlist.m3u", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/x-mpegurl", rec.Header().Get("Content-Type"))

	channels, err := fetcher.ParseM3U(rec.Body)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "https://cdn/news.m3u8", channels[0].PrimaryURL())
	link, ok := channels[0].PrimaryStreamLink()
	require.True(t, ok)
	assert.Equal(t, []models.RequestHeader{{Key: "Referer", Value: "https://site"}}, link.RequestHeaders)
}

func TestRefresh_Synchronous(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	do(t, env.srv, http.MethodGet, "/api/channels", "")

	rec := do(t, env.srv, http.MethodPost, "/api/catalog/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[service.Result](t, rec)
	assert.Equal(t, 2, res.Channels)
	assert.EqualValues(t, 2, env.fetches.Load())
}

func TestRefresh_BadBody(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	rec := do(t, env.srv, http.MethodPost, "/api/catalog/refresh", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_RejectsForeignRef(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	do(t, env.srv, http.MethodGet, "/api/channels", "")

	for _, ref := range []string{"http://169.254.169.254/evil.json", "asset://../../etc/passwd"} {
		rec := do(t, env.srv, http.MethodPost, "/api/catalog/refresh", `{"ref":"`+ref+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, ref)
		assert.Equal(t, errForeignRef.Error(), decode[APIError](t, rec).Detail)
	}

	assert.True(t, env.srv.syncer.Catalog().Populated())
	assert.Equal(t, catalogURL, env.srv.syncer.Catalog().SourceRef())
	assert.EqualValues(t, 1, env.fetches.Load())
}

func TestRefresh_Enqueued(t *testing.T) {
	rds := newRedis(t)
	env := newTestEnv(t, catalogDoc, false, rds)

	rec := do(t, env.srv, http.MethodPost, "/api/catalog/refresh", `{"ref":"`+catalogURL+`","invalidate":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.NotEmpty(t, body["job_id"])

	job, err := cache.Dequeue(context.Background(), rds, cache.DefaultQueue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, body["job_id"], job.ID.String())
	assert.Equal(t, catalogURL, job.Ref)
	assert.True(t, job.Invalidate)
	assert.Zero(t, env.fetches.Load())
}

func TestRefresh_RateLimited(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	var last *httptest.ResponseRecorder
	for range 11 {
		last = do(t, env.srv, http.MethodPost, "/api/catalog/refresh", "")
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	do(t, env.srv, http.MethodGet, "/api/channels", "")
	require.True(t, env.srv.syncer.Catalog().Populated())

	rec := do(t, env.srv, http.MethodDelete, "/api/catalog", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.srv.syncer.Catalog().Populated())
}

func TestReset_PurgeDropsCachedDocuments(t *testing.T) {
	rds := newRedis(t)
	env := newTestEnv(t, catalogDoc, false, rds)
	ctx := context.Background()
	require.NoError(t, rds.SetRaw(ctx, cache.DocumentKey(catalogURL), []byte(catalogDoc), time.Minute))
	require.NoError(t, rds.SetRaw(ctx, cache.SnapshotKey(catalogURL), []byte("{}"), time.Minute))

	rec := do(t, env.srv, http.MethodDelete, "/api/catalog", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := rds.GetRaw(ctx, cache.DocumentKey(catalogURL))
	require.NoError(t, err)

	rec = do(t, env.srv, http.MethodDelete, "/api/catalog?purge=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = rds.GetRaw(ctx, cache.DocumentKey(catalogURL))
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = rds.GetRaw(ctx, cache.SnapshotKey(catalogURL))
	assert.NoError(t, err)
}

func TestSnapshots(t *testing.T) {
	env := newTestEnv(t, catalogDoc, true, nil)
	do(t, env.srv, http.MethodGet, "/api/channels", "")

	infos := decode[[]store.SnapshotInfo](t, do(t, env.srv, http.MethodGet, "/api/snapshots", ""))
	require.Len(t, infos, 1)
	assert.Equal(t, catalogURL, infos[0].Ref)

	path := "/api/snapshots/" + url.PathEscape(catalogURL)
	rec := do(t, env.srv, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[store.Snapshot](t, rec)
	assert.Len(t, snap.Channels, 2)

	rec = do(t, env.srv, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, env.srv, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshots_NoStore(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)
	rec := do(t, env.srv, http.MethodGet, "/api/snapshots", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, env.srv, http.MethodGet, "/api/snapshots/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocsAndMetrics(t *testing.T) {
	env := newTestEnv(t, catalogDoc, false, nil)

	rec := do(t, env.srv, http.MethodGet, "/api/docs/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi:")

	rec = do(t, env.srv, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = do(t, env.srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
