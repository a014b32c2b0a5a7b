// Package service ties the catalog cache to snapshot persistence and the
// refresh job queue.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voyagen/castvault/internal/catalog"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/store"
)

// DocumentInvalidator drops a cached raw document, e.g. fetcher.CachedSource.
type DocumentInvalidator interface {
	Invalidate(ctx context.Context, ref string) error
}

// Result summarises one sync.
type Result struct {
	Ref         string              `json:"ref"`
	Channels    int                 `json:"channels"`
	Descriptors int                 `json:"descriptors"`
	Snapshot    *store.SnapshotInfo `json:"snapshot,omitempty"`
}

// Syncer builds the catalog and persists each populated build. Store and
// Documents are optional.
type Syncer struct {
	catalog   *catalog.Cache
	store     store.Store
	documents DocumentInvalidator
	instance  string
	logger    zerolog.Logger
}

// NewSyncer returns a Syncer. st and docs may be nil.
func NewSyncer(c *catalog.Cache, st store.Store, docs DocumentInvalidator) *Syncer {
	return &Syncer{
		catalog:   c,
		store:     st,
		documents: docs,
		instance:  uuid.NewString(),
		logger:    log.WithComponent("service"),
	}
}

// Catalog returns the cache the syncer builds into.
func (s *Syncer) Catalog() *catalog.Cache { return s.catalog }

// Sync loads ref into the catalog (a no-op when already populated) and saves
// the valid channels as the snapshot of the cached source ref. Only a store
// failure is returned as an error; an empty build is reported in Result.
func (s *Syncer) Sync(ctx context.Context, ref string) (Result, error) {
	descs := s.catalog.Load(ctx, ref)
	res := Result{Ref: ref, Descriptors: len(descs)}
	if !s.catalog.Populated() {
		return res, nil
	}
	channels := s.catalog.Channels()
	res.Channels = len(channels)
	res.Ref = s.catalog.SourceRef()
	if s.store == nil {
		return res, nil
	}
	info, err := s.store.SaveSnapshot(ctx, res.Ref, channels)
	if err != nil {
		return res, fmt.Errorf("SaveSnapshot: %w", err)
	}
	res.Snapshot = &info
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str(log.FieldSourceRef, res.Ref).
		Int(log.FieldChannels, info.ChannelCount).
		Int64("snapshot_id", info.ID).
		Msg("snapshot saved")
	return res, nil
}

// Refresh forces a rebuild of ref: the cached raw document is dropped when
// invalidate is set, the catalog is reset, and Sync runs again.
func (s *Syncer) Refresh(ctx context.Context, ref string, invalidate bool) (Result, error) {
	if invalidate && s.documents != nil {
		if err := s.documents.Invalidate(ctx, ref); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldSourceRef, ref).Msg("document invalidation failed")
		}
	}
	s.catalog.Reset()
	return s.Sync(ctx, ref)
}
