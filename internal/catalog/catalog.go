// Package catalog holds the memoized catalog: the valid channels of the last
// successful build and their playback descriptors.
package catalog

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"

	"github.com/voyagen/castvault/internal/fetcher"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/metrics"
	"github.com/voyagen/castvault/internal/models"
	"github.com/voyagen/castvault/internal/playback"
)

// Ref prefixes understood by Load.
const (
	AssetScheme       = "asset://"
	LegacyAssetPrefix = "file:///android_asset/"
)

const flightKey = "build"

// Cache is a single-slot memo of the last non-empty build. Once populated,
// every build call returns the stored result without fetching until Reset,
// whatever ref it is given. Concurrent builds share one fetch.
type Cache struct {
	http  fetcher.ByteSource
	asset fetcher.ByteSource

	logger  zerolog.Logger
	onError ErrorHook

	group singleflight.Group

	mu          sync.RWMutex
	channels    []models.Channel
	descriptors []models.PlaybackDescriptor
	ref         string
	populated   bool
	generation  uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithErrorHook registers fn to receive recovered fetch and parse failures.
func WithErrorHook(fn ErrorHook) Option {
	return func(c *Cache) { c.onError = fn }
}

// New returns an empty cache reading URLs from httpSrc and bundled assets
// from assetSrc.
func New(httpSrc, assetSrc fetcher.ByteSource, opts ...Option) *Cache {
	c := &Cache{
		http:   httpSrc,
		asset:  assetSrc,
		logger: log.WithComponent("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildFromURL builds the catalog from a remote document.
func (c *Cache) BuildFromURL(ctx context.Context, url string) []models.PlaybackDescriptor {
	return c.build(ctx, OriginURL, c.http, url)
}

// BuildFromAsset builds the catalog from a bundled document.
func (c *Cache) BuildFromAsset(ctx context.Context, path string) []models.PlaybackDescriptor {
	return c.build(ctx, OriginAsset, c.asset, path)
}

// Load dispatches ref to BuildFromAsset when it carries an asset prefix and to
// BuildFromURL otherwise.
func (c *Cache) Load(ctx context.Context, ref string) []models.PlaybackDescriptor {
	if path, ok := AssetPath(ref); ok {
		return c.BuildFromAsset(ctx, path)
	}
	return c.BuildFromURL(ctx, ref)
}

// AssetPath strips an asset prefix from ref.
func AssetPath(ref string) (string, bool) {
	for _, prefix := range []string{AssetScheme, LegacyAssetPrefix} {
		if path, ok := strings.CutPrefix(ref, prefix); ok {
			return path, true
		}
	}
	return "", false
}

// Channels returns the valid channels of the cached build.
func (c *Cache) Channels() []models.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.channels)
}

// Descriptors returns the playback descriptors of the cached build.
func (c *Cache) Descriptors() []models.PlaybackDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.descriptors)
}

// Channel looks up a cached channel by id.
func (c *Cache) Channel(id string) mo.Option[models.Channel] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := lo.Find(c.channels, func(ch models.Channel) bool { return ch.ID == id }); ok {
		return mo.Some(ch)
	}
	return mo.None[models.Channel]()
}

// Descriptor looks up a cached descriptor by channel id.
func (c *Cache) Descriptor(id string) mo.Option[models.PlaybackDescriptor] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := lo.Find(c.descriptors, func(d models.PlaybackDescriptor) bool { return d.ChannelID == id }); ok {
		return mo.Some(d)
	}
	return mo.None[models.PlaybackDescriptor]()
}

// Populated reports whether a non-empty build is cached.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// SourceRef returns the ref the cached build was read from, or "". Asset
// builds are reported as asset://<path>.
func (c *Cache) SourceRef() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ref
}

// Reset clears the cached build. Builds already in flight finish but do not
// store their result.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.channels = nil
	c.descriptors = nil
	c.ref = ""
	c.populated = false
	c.generation++
	c.mu.Unlock()
	c.group.Forget(flightKey)
	metrics.CatalogChannels.Set(0)
	c.logger.Debug().Str(log.FieldEvent, "catalog.reset").Msg("catalog cache cleared")
}

// sourceRef is the canonical form of a fetch ref.
func sourceRef(origin Origin, ref string) string {
	if origin == OriginAsset {
		return AssetScheme + ref
	}
	return ref
}

func (c *Cache) cached(origin Origin, ref string) ([]models.PlaybackDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.populated {
		return nil, false
	}
	if sourceRef(origin, ref) != c.ref {
		c.logger.Warn().
			Str(log.FieldEvent, "catalog.stale_ref").
			Str(log.FieldOrigin, string(origin)).
			Str(log.FieldSourceRef, ref).
			Str("cached_ref", c.ref).
			Msg("catalog already built from another source; returning cached result")
	}
	return slices.Clone(c.descriptors), true
}

// flightResult is what a shared build hands to every caller waiting on it.
type flightResult struct {
	descs []models.PlaybackDescriptor
	// cancelled is set when the build was abandoned because the context of
	// the caller that started it ended.
	cancelled bool
}

func (c *Cache) build(ctx context.Context, origin Origin, src fetcher.ByteSource, ref string) []models.PlaybackDescriptor {
	for {
		if descs, ok := c.cached(origin, ref); ok {
			metrics.ObserveBuild(string(origin), metrics.ResultCached)
			return descs
		}

		v, _, _ := c.group.Do(flightKey, func() (any, error) {
			if descs, ok := c.cached(origin, ref); ok {
				metrics.ObserveBuild(string(origin), metrics.ResultCached)
				return flightResult{descs: descs}, nil
			}
			descs := c.run(ctx, origin, src, ref)
			return flightResult{descs: descs, cancelled: len(descs) == 0 && ctx.Err() != nil}, nil
		})
		res := v.(flightResult)
		if res.cancelled && ctx.Err() == nil {
			// Another caller started the build and gave up; build again under ctx.
			continue
		}
		return slices.Clone(res.descs)
	}
}

// run executes one fetch/parse/filter/project cycle and stores a non-empty result.
func (c *Cache) run(ctx context.Context, origin Origin, src fetcher.ByteSource, ref string) []models.PlaybackDescriptor {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	logger := log.WithContext(ctx, c.logger).With().
		Str(log.FieldOrigin, string(origin)).
		Str(log.FieldSourceRef, ref).
		Logger()

	channels, ok := c.fetchAndParse(ctx, origin, src, ref, logger).Get()
	if !ok {
		if ctx.Err() != nil {
			metrics.ObserveBuild(string(origin), metrics.ResultCancel)
		} else {
			metrics.ObserveBuild(string(origin), metrics.ResultEmpty)
		}
		return []models.PlaybackDescriptor{}
	}

	valid := lo.Filter(channels, func(ch models.Channel, _ int) bool { return ch.HasValidSources() })
	if dropped := len(channels) - len(valid); dropped > 0 {
		metrics.ObserveDropped("invalid", dropped)
		logger.Debug().Int(log.FieldDropped, dropped).Msg("dropped channels without playable sources")
	}
	descriptors := playback.ProjectAll(valid)
	metrics.ObserveDropped("unplayable", len(valid)-len(descriptors))

	if len(descriptors) == 0 {
		metrics.ObserveBuild(string(origin), metrics.ResultEmpty)
		logger.Info().Int(log.FieldChannels, len(channels)).Msg("catalog build produced no playable channels")
		return []models.PlaybackDescriptor{}
	}
	if ctx.Err() != nil {
		metrics.ObserveBuild(string(origin), metrics.ResultCancel)
		return []models.PlaybackDescriptor{}
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		logger.Debug().Msg("catalog reset during build; result not stored")
		return descriptors
	}
	c.channels = valid
	c.descriptors = descriptors
	c.ref = sourceRef(origin, ref)
	c.populated = true
	c.mu.Unlock()

	metrics.ObserveBuild(string(origin), metrics.ResultOK)
	metrics.CatalogChannels.Set(float64(len(valid)))
	logger.Info().
		Str(log.FieldEvent, "catalog.built").
		Int(log.FieldChannels, len(descriptors)).
		Msg("catalog built")
	return slices.Clone(descriptors)
}

// fetchAndParse returns None after reporting the failure when either step fails.
func (c *Cache) fetchAndParse(ctx context.Context, origin Origin, src fetcher.ByteSource, ref string, logger zerolog.Logger) mo.Option[[]models.Channel] {
	if src == nil {
		c.report(logger, &BuildError{Origin: origin, Stage: StageFetch, Ref: ref, Err: errors.New("no byte source configured")})
		return mo.None[[]models.Channel]()
	}
	fetched := mo.TupleToResult(src.Fetch(ctx, ref))
	if fetched.IsError() {
		c.report(logger, &BuildError{Origin: origin, Stage: StageFetch, Ref: ref, Err: fetched.Error()})
		return mo.None[[]models.Channel]()
	}
	parsed := mo.TupleToResult(parseDocument(fetched.MustGet()))
	if parsed.IsError() {
		c.report(logger, &BuildError{Origin: origin, Stage: StageParse, Ref: ref, Err: parsed.Error()})
		return mo.None[[]models.Channel]()
	}
	return mo.Some(parsed.MustGet())
}

func parseDocument(data []byte) ([]models.Channel, error) {
	channels, _, err := fetcher.ParseDocument(data)
	return channels, err
}

func (c *Cache) report(logger zerolog.Logger, err *BuildError) {
	metrics.ObserveFailure(string(err.Stage))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Debug().Err(err.Err).Str(log.FieldStage, string(err.Stage)).Msg("catalog build cancelled")
	} else {
		logger.Warn().Err(err.Err).Str(log.FieldStage, string(err.Stage)).Msg("catalog build failed")
	}
	if c.onError != nil {
		c.onError(err)
	}
}
