package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/bootstrap"
)

func workerCommand() *cobra.Command {
	var (
		serve   bool
		imports bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the crawl loop for this worker's shard",
		Long: `Continuously picks due businesses owned by this worker, crawls their
websites and stores the scored result. Run several workers with distinct
--worker-id values and the same --total-workers to split the records.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				return runWorker(ctx, app, serve, imports)
			})
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the HTTP API")
	cmd.Flags().BoolVar(&imports, "imports", false, "also run the scheduled registry import")
	return cmd
}

func runWorker(ctx context.Context, app *bootstrap.App, serve, imports bool) error {
	runner, err := app.Runner()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})

	if imports {
		sched, schedErr := app.ImportScheduler()
		switch {
		case errors.Is(schedErr, bootstrap.ErrNoSchedule):
			app.Log.Warn("Imports requested but no schedule configured")
		case schedErr != nil:
			return schedErr
		default:
			sched.Start()
			g.Go(func() error {
				<-gctx.Done()
				sched.Stop()
				return nil
			})
		}
	}

	if serve {
		server := app.Server(debugEnabled(), true)
		g.Go(func() error {
			return server.RunWithGracefulShutdown(gctx)
		})
	}

	err = g.Wait()
	app.Log.Info("Worker stopped", logger.Bool("interrupted", ctx.Err() != nil))
	return err
}
