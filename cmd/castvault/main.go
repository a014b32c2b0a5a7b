// Command castvault builds channel catalogs, serves them over HTTP and exports
// them as M3U playlists.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voyagen/castvault/internal/config"
	"github.com/voyagen/castvault/internal/log"
)

var (
	configPath string
	refFlag    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "castvault",
	Short:         "Channel catalog builder, API server and playlist exporter",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if refFlag != "" && configPath == "" {
			_ = os.Setenv("CATALOG_URL", refFlag)
		}
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if refFlag != "" {
			cfg.CatalogURL = refFlag
		}
		log.Configure(log.Config{Level: cfg.LogLevel})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional config file path (YAML); else use env CATALOG_URL")
	rootCmd.PersistentFlags().StringVar(&refFlag, "ref", "", "Catalog URL or asset:// path, overrides CATALOG_URL")

	rootCmd.AddCommand(serveCmd, buildCmd, exportCmd, workerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "castvault: %v\n", err)
		os.Exit(1)
	}
}
