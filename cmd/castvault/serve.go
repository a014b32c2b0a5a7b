package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/catalog"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/server"
	"github.com/voyagen/castvault/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)

		// The refresh worker runs in-process when Redis carries the job queue.
		// Refreshes done by other processes reset this cache through FollowResets.
		if a.rds != nil {
			g.Go(func() error {
				service.RunWorker(ctx, a.rds, cache.DefaultQueue, a.syncer)
				return nil
			})
			g.Go(func() error {
				if err := service.FollowResets(ctx, a.rds, a.syncer); err != nil {
					a.logger.Error().Err(err).Msg("reset events unavailable")
				}
				return nil
			})
		}

		if file, ok := assetFile(cfg, cfg.CatalogURL); ok && cfg.WatchAsset {
			g.Go(func() error {
				return a.catalog.Watch(ctx, cfg.CatalogURL, file, catalog.DefaultDebounce, func(n int) {
					if n == 0 {
						return
					}
					if _, err := a.syncer.Sync(ctx, cfg.CatalogURL); err != nil {
						a.logger.Warn().Err(err).Str(log.FieldSourceRef, cfg.CatalogURL).Msg("snapshot after reload failed")
					}
				})
			})
		}

		srv := server.New(cfg, a.syncer, a.store, a.rds)
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
		return g.Wait()
	},
}
