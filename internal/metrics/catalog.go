// Package metrics provides Prometheus metrics for catalog builds and serving.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Build results.
const (
	ResultOK     = "ok"
	ResultEmpty  = "empty"
	ResultCached = "cached"
	ResultCancel = "cancelled"
)

var (
	// CatalogBuildsTotal counts build calls by origin (url, asset) and result.
	CatalogBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "castvault_catalog_builds_total",
		Help: "Total number of catalog build calls, by origin and result.",
	}, []string{"origin", "result"})

	// CatalogFailuresTotal counts recovered failures by pipeline stage (fetch, parse).
	CatalogFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "castvault_catalog_failures_total",
		Help: "Total number of recovered catalog failures, by stage.",
	}, []string{"stage"})

	// CatalogDroppedTotal counts channels excluded from a build.
	CatalogDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "castvault_catalog_dropped_channels_total",
		Help: "Total number of channels dropped during a build, by reason (invalid, unplayable).",
	}, []string{"reason"})

	// CatalogChannels is the number of valid channels currently cached.
	CatalogChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "castvault_catalog_channels",
		Help: "Number of valid channels held by the catalog cache.",
	})

	// DocumentCacheTotal counts remote document cache lookups by result (hit, miss).
	DocumentCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "castvault_document_cache_total",
		Help: "Remote catalog document cache lookups, by result.",
	}, []string{"result"})

	// PlayerHandoffTotal counts descriptor handoffs by mode (headers, plain, fallback).
	PlayerHandoffTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "castvault_player_handoff_total",
		Help: "Playback descriptor handoffs to a player, by mode.",
	}, []string{"mode"})
)

// ObserveBuild records one build call.
func ObserveBuild(origin, result string) {
	CatalogBuildsTotal.WithLabelValues(origin, result).Inc()
}

// ObserveFailure records one recovered failure.
func ObserveFailure(stage string) {
	CatalogFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveDropped records n channels dropped for reason.
func ObserveDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	CatalogDroppedTotal.WithLabelValues(reason).Add(float64(n))
}
