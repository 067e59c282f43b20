package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/salvageiq/auctionmind/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "auctionmind",
	Short: "Vehicle intelligence analysis for salvage auctions",
	Long:  "Resolves auction lots, gathers sales history, image assessments and market research in parallel, and merges them into a buy/caution recommendation.",
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
