package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/pipeline"
)

var runReport bool

var runCmd = &cobra.Command{
	Use:   "run <posts.json> [more.json...]",
	Short: "Score, enrich, and route a batch of posts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		posts, err := loadPosts(args)
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Run(ctx, posts)
		if err != nil {
			return err
		}

		// Deliver immediate alerts right away; digest entries wait for
		// the daily send.
		for _, d := range result.Decisions {
			if d.Channel != model.ChannelImmediate {
				continue
			}
			if err := env.Notifier.Notify(ctx, d); err != nil {
				zap.L().Error("immediate alert delivery failed",
					zap.String("post_id", d.PostID),
					zap.Error(err),
				)
			}
		}

		if runReport {
			fmt.Println(pipeline.FormatReport(result))
		}
		return nil
	},
}

// loadPosts reads raw posts from the given files concurrently. Each
// file holds either a JSON array of posts or one post per line.
func loadPosts(paths []string) ([]model.RawPost, error) {
	var (
		mu    sync.Mutex
		posts []model.RawPost
	)

	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, path := range paths {
		g.Go(func() error {
			batch, err := readPostsFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			posts = append(posts, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return posts, nil
}

func readPostsFile(path string) ([]model.RawPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var posts []model.RawPost
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		return posts, nil
	}

	// JSONL: one post per line.
	var posts []model.RawPost
	for i, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var post model.RawPost
		if err := json.Unmarshal([]byte(line), &post); err != nil {
			return nil, eris.Wrapf(err, "parse %s line %d", path, i+1)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func init() {
	runCmd.Flags().BoolVar(&runReport, "report", true, "print the run report")
	rootCmd.AddCommand(runCmd)
}
