package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Meltveit/qrydex/internal/bootstrap"
)

func serveCommand() *cobra.Command {
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				return app.Server(debugEnabled(), !readOnly).RunWithGracefulShutdown(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable POST /api/v1/verify")
	return cmd
}
