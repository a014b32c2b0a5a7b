package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voyagen/castvault/internal/player"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as an M3U playlist with request headers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := exportOut
		if out == "" {
			out = cfg.ExportPath
		}
		if out == "" {
			return errors.New("no output path: pass --out or set CATALOG_EXPORT_PATH")
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		descs := a.catalog.Load(cmd.Context(), cfg.CatalogURL)
		if len(descs) == 0 {
			return fmt.Errorf("catalog %s produced no playable channels", cfg.CatalogURL)
		}
		if err := player.WriteM3UFile(cmd.Context(), out, descs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d channels to %s\n", len(descs), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output playlist path (default CATALOG_EXPORT_PATH)")
}
