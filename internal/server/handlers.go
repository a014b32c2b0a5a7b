package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/models"
	"github.com/voyagen/castvault/internal/player"
	"github.com/voyagen/castvault/internal/service"
	"github.com/voyagen/castvault/internal/store"
)

var (
	errCatalogEmpty  = errors.New("catalog is empty")
	errNoStore       = errors.New("snapshot store not configured")
	errMissingRef    = errors.New("no catalog ref given and CATALOG_URL is not set")
	errChannelAbsent = errors.New("channel not found")
	errForeignRef    = errors.New("ref is not the configured catalog")
)

// ensureLoaded builds the configured catalog on first use.
func (s *Server) ensureLoaded(r *http.Request) error {
	c := s.syncer.Catalog()
	if c.Populated() {
		return nil
	}
	if s.cfg.CatalogURL == "" {
		return errMissingRef
	}
	if _, err := s.syncer.Sync(r.Context(), s.cfg.CatalogURL); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().Err(err).Msg("snapshot not saved")
	}
	if !c.Populated() {
		return errCatalogEmpty
	}
	return nil
}

func (s *Server) loadOrFail(w http.ResponseWriter, r *http.Request) bool {
	if err := s.ensureLoaded(r); err != nil {
		s.writeErr(w, r, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c := s.syncer.Catalog()
	resp := map[string]any{
		"status":    "ok",
		"populated": c.Populated(),
		"source":    c.SourceRef(),
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["redis"] = err.Error()
		} else {
			if n, err := cache.Pending(r.Context(), s.redis, cache.DefaultQueue); err == nil {
				resp["queued_refreshes"] = n
			}
			if s.cfg.CatalogURL != "" {
				resp["refreshing"] = cache.IsLocked(r.Context(), s.redis, service.RefreshLockName(s.cfg.CatalogURL))
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- channels ---

type channelsResponse struct {
	Source   string           `json:"source"`
	Count    int              `json:"count"`
	Channels []models.Channel `json:"channels"`
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	c := s.syncer.Catalog()
	channels := c.Channels()

	if t := r.URL.Query().Get("type"); t != "" {
		channels = lo.Filter(channels, func(ch models.Channel, _ int) bool {
			return strings.EqualFold(string(ch.Type), t)
		})
	}
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		channels = lo.Filter(channels, func(ch models.Channel, _ int) bool {
			return strings.Contains(strings.ToLower(ch.Name), q)
		})
	}

	s.writeJSON(w, http.StatusOK, channelsResponse{
		Source:   c.SourceRef(),
		Count:    len(channels),
		Channels: channels,
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	ch, ok := s.syncer.Catalog().Channel(chi.URLParam(r, "id")).Get()
	if !ok {
		s.writeErr(w, r, http.StatusNotFound, errChannelAbsent)
		return
	}
	s.writeJSON(w, http.StatusOK, ch)
}

// --- playback ---

func (s *Server) handleListPlayback(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.syncer.Catalog().Descriptors())
}

func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	desc, ok := s.syncer.Catalog().Descriptor(chi.URLParam(r, "id")).Get()
	if !ok {
		s.writeErr(w, r, http.StatusNotFound, errChannelAbsent)
		return
	}
	s.writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleCastRequest(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	desc, ok := s.syncer.Catalog().Descriptor(chi.URLParam(r, "id")).Get()
	if !ok {
		s.writeErr(w, r, http.StatusNotFound, errChannelAbsent)
		return
	}

	autoplay := true
	if v := r.URL.Query().Get("autoplay"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid autoplay: %w", err))
			return
		}
		autoplay = b
	}
	var position time.Duration
	if v := r.URL.Query().Get("position"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid position: %w", err))
			return
		}
		position = time.Duration(secs * float64(time.Second))
	}

	s.writeJSON(w, http.StatusOK, player.NewCastLoadRequest(desc, autoplay, position))
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if !s.loadOrFail(w, r) {
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `inline; filename="playlist.m3u"`)
	w.WriteHeader(http.StatusOK)
	if err := player.WriteM3U(r.Context(), w, s.syncer.Catalog().Descriptors()); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().Err(err).Msg("playlist write")
	}
}

// --- catalog lifecycle ---

type refreshRequest struct {
	Ref        string `json:"ref"`
	Invalidate bool   `json:"invalidate"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	if s.cfg.CatalogURL == "" {
		s.writeErr(w, r, http.StatusBadRequest, errMissingRef)
		return
	}
	// Only the configured catalog may be refreshed; the cache is shared by
	// every client.
	if req.Ref != "" && req.Ref != s.cfg.CatalogURL {
		s.writeErr(w, r, http.StatusBadRequest, errForeignRef)
		return
	}
	req.Ref = s.cfg.CatalogURL

	if s.redis != nil {
		job := cache.NewRefreshJob(req.Ref, req.Invalidate)
		if err := cache.Enqueue(r.Context(), s.redis, cache.DefaultQueue, job); err != nil {
			s.writeErr(w, r, http.StatusInternalServerError, fmt.Errorf("enqueue refresh: %w", err))
			return
		}
		logger := log.WithContext(r.Context(), s.logger)
		logger.Info().
			Str(log.FieldJobID, job.ID.String()).
			Str(log.FieldSourceRef, req.Ref).
			Msg("refresh enqueued")
		s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
		return
	}

	res, err := s.syncer.Refresh(r.Context(), req.Ref, req.Invalidate)
	if err != nil {
		s.writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleReset clears the catalog. With ?purge=true the raw documents cached
// in Redis are dropped too, so the next build fetches from the origin.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge && s.redis != nil {
		if err := cache.DelPattern(r.Context(), s.redis, cache.DocumentKeyPrefix+"*"); err != nil {
			s.writeErr(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	s.syncer.Catalog().Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- snapshots ---

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeErr(w, r, http.StatusServiceUnavailable, errNoStore)
		return
	}
	infos, err := s.store.ListSnapshots(r.Context())
	if err != nil {
		s.writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.snapshotRef(w, r)
	if !ok {
		return
	}
	snap, err := s.store.GetSnapshot(r.Context(), ref)
	if errors.Is(err, store.ErrNotFound) {
		s.writeErr(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.snapshotRef(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteSnapshot(r.Context(), ref)
	if errors.Is(err, store.ErrNotFound) {
		s.writeErr(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snapshotRef returns the unescaped {ref} path value; refs are usually URLs
// and arrive percent-encoded.
func (s *Server) snapshotRef(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.store == nil {
		s.writeErr(w, r, http.StatusServiceUnavailable, errNoStore)
		return "", false
	}
	ref, err := url.PathUnescape(chi.URLParam(r, "ref"))
	if err != nil || ref == "" {
		s.writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid ref %q", chi.URLParam(r, "ref")))
		return "", false
	}
	return ref, true
}
