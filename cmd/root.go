package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openspace-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "openspace-cli",
	Short: "Urban cluster delineation and open space indicator",
	Long:  "Delineates the dense urban cluster of an area from land-cover and imperviousness rasters, then measures open spaces and streets inside it as a share of the built-up area.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
