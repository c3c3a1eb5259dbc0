package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacksignal/hacksignal/internal/alert"
)

var (
	digestDay  string
	digestShow bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send or inspect the daily digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		day := digestDay
		if day == "" {
			day = time.Now().UTC().Format(alert.DayKey)
		}
		if _, err := time.Parse(alert.DayKey, day); err != nil {
			return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", digestDay)
		}

		if digestShow {
			entries, err := env.Store.ListDigestEntries(ctx, day)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("no digest entries for %s\n", day)
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s\n", e.PostID, e.Message)
			}
			return nil
		}

		dispatcher, err := alert.NewDispatcher(env.Store, env.Notifier, cfg.Processing)
		if err != nil {
			return err
		}
		sent, err := dispatcher.FlushDay(ctx, day)
		if err != nil {
			return err
		}
		fmt.Printf("sent %d digest entries for %s\n", sent, day)
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestDay, "day", "", "digest day (YYYY-MM-DD, default today UTC)")
	digestCmd.Flags().BoolVar(&digestShow, "show", false, "list queued entries instead of sending")
	rootCmd.AddCommand(digestCmd)
}
