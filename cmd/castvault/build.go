package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the catalog once, save a snapshot and print a summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.syncer.Sync(cmd.Context(), cfg.CatalogURL)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source:      %s\n", res.Ref)
		fmt.Fprintf(out, "channels:    %d\n", res.Channels)
		fmt.Fprintf(out, "playable:    %d\n", res.Descriptors)
		if a.pg != nil {
			fmt.Fprintf(out, "schema:      v%d\n", a.schemaVersion)
		}
		if res.Snapshot != nil {
			fmt.Fprintf(out, "snapshot:    #%d at %s\n", res.Snapshot.ID, res.Snapshot.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		if res.Descriptors == 0 {
			return fmt.Errorf("catalog %s produced no playable channels", cfg.CatalogURL)
		}
		return nil
	},
}
