package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/service"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued catalog refresh jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.RedisURL == "" {
			return errors.New("worker requires REDIS_URL")
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		service.RunWorker(cmd.Context(), a.rds, cache.DefaultQueue, a.syncer)
		return nil
	},
}
