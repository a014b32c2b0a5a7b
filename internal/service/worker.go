package service

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/log"
)

// Worker tuning.
const (
	dequeueTimeout = 5 * time.Second
	errorBackoff   = 2 * time.Second
	refreshLockTTL = 2 * time.Minute
)

// RunWorker dequeues refresh jobs from queue and runs them through s until
// ctx is cancelled. A job whose ref is already being refreshed by another
// worker is skipped.
func RunWorker(ctx context.Context, rds *cache.Redis, queue string, s *Syncer) {
	logger := s.logger.With().Str(log.FieldComponent, "worker").Logger()
	logger.Info().Str(log.FieldEvent, "worker.started").Msg("refresh worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "worker.stopped").Msg("refresh worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, queue, dequeueTimeout)
		if err != nil {
			logger.Error().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		ProcessJob(ctx, rds, s, *job)
	}
}

// ProcessJob runs one refresh job under the per-ref refresh lock.
func ProcessJob(ctx context.Context, rds *cache.Redis, s *Syncer, job cache.RefreshJob) {
	ctx = log.ContextWithJobID(ctx, job.ID.String())
	logger := log.WithContext(ctx, s.logger).With().Str(log.FieldSourceRef, job.Ref).Logger()

	unlock, err := cache.TryLock(ctx, rds, RefreshLockName(job.Ref), refreshLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		logger.Info().Msg("refresh already running, job skipped")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("refresh lock failed")
		return
	}
	defer unlock()

	res, err := s.Refresh(ctx, job.Ref, job.Invalidate)
	// Other processes serve their own cache; tell them to drop it.
	ev := cache.ResetEvent{Ref: job.Ref, Origin: s.instance, JobID: job.ID.String()}
	if perr := cache.PublishReset(ctx, rds, ev); perr != nil {
		logger.Warn().Err(perr).Msg("reset broadcast failed")
	}
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed")
		return
	}
	logger.Info().
		Str(log.FieldEvent, "worker.job_done").
		Int(log.FieldChannels, res.Channels).
		Dur("queued_for", time.Since(job.RequestedAt)).
		Msg("refresh job done")
}

// RefreshLockName names the Redis lock held while ref is being refreshed.
func RefreshLockName(ref string) string {
	return "refresh:" + ref
}

// FollowResets resets s's catalog whenever another process announces a
// refresh, until ctx is done. The next read rebuilds it lazily.
func FollowResets(ctx context.Context, rds *cache.Redis, s *Syncer) error {
	logger := s.logger.With().Str(log.FieldComponent, "events").Logger()
	logger.Info().Str(log.FieldEvent, "events.subscribed").Msg("following catalog resets")
	return cache.SubscribeResets(ctx, rds, func(ev cache.ResetEvent) {
		if ev.Origin == s.instance {
			return
		}
		s.catalog.Reset()
		logger.Info().
			Str(log.FieldEvent, "events.reset").
			Str(log.FieldSourceRef, ev.Ref).
			Str(log.FieldJobID, ev.JobID).
			Str(log.FieldOrigin, ev.Origin).
			Msg("catalog reset by remote refresh")
	})
}
