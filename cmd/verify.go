package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Meltveit/qrydex/internal/bootstrap"
	"github.com/Meltveit/qrydex/internal/orchestrator"
)

func verifyCommand() *cobra.Command {
	var name, website string

	cmd := &cobra.Command{
		Use:   "verify <country> <org-number>",
		Short: "Verify one business against its registry and store it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.Orchestrator.VerifyAndStore(ctx, args[1], args[0], &orchestrator.Hints{
					Name:   name,
					Domain: website,
				})
				if err != nil {
					return err
				}
				renderOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name used when the business is new")
	cmd.Flags().StringVar(&website, "domain", "", "website domain used when the business is new")
	return cmd
}
