package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hacksignal",
	Short: "Hackathon signal scoring pipeline",
	Long:  "Scores social posts for hackathon relevance, extracts prize and duration data, and routes alerts to immediate or digest delivery.",
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
