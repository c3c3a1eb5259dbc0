package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/scoring"
)

var (
	scoreText      string
	scoreFollowers int64
)

// scoreCmd scores a single post offline. No store, no network; handy
// for tuning the catalog.
var scoreCmd = &cobra.Command{
	Use:   "score --text <post text>",
	Short: "Score one post without persisting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		post := model.RawPost{
			ID:        "adhoc",
			Text:      scoreText,
			Author:    model.Author{FollowersCount: scoreFollowers},
			CreatedAt: time.Now().UTC(),
		}
		if err := scoring.Validate(post); err != nil {
			return err
		}

		scored := scoring.Score(post, cat, cfg.Thresholds)
		out, err := json.MarshalIndent(scored, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreText, "text", "", "post text to score")
	scoreCmd.Flags().Int64Var(&scoreFollowers, "followers", 0, "author follower count")
	_ = scoreCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(scoreCmd)
}
