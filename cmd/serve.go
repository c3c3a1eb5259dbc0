package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API and the daily digest scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		dispatcher, err := alert.NewDispatcher(env.Store, env.Notifier, cfg.Processing)
		if err != nil {
			return err
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			server := api.New(cfg, env.Store, env.Pipeline, env.Describer, env.Notifier)
			return server.ListenAndServe(gCtx)
		})

		g.Go(func() error {
			if err := dispatcher.Start(); err != nil {
				return err
			}
			<-gCtx.Done()
			dispatcher.Stop()
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
