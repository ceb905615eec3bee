package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/bootstrap"
	"github.com/Meltveit/qrydex/internal/importer"
)

func importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import businesses from registry listings and workbooks",
	}
	cmd.AddCommand(
		importRegistryCommand(),
		importXLSXCommand(),
		importScheduleCommand(),
		importStatusCommand(),
	)
	return cmd
}

func importRegistryCommand() *cobra.Command {
	var batches int

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Verify businesses page by page from the Norwegian registry listing",
		Long: `Resumes from the saved cursor and verifies every listed entity that has a
homepage. Stops after --batches pages or when the listing wraps around.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				return runBatches(ctx, cmd, app.BrregBot(), batches)
			})
		},
	}

	cmd.Flags().IntVar(&batches, "batches", 1, "pages to import (0 runs to the end of the listing)")
	return cmd
}

func importXLSXCommand() *cobra.Command {
	var (
		name    string
		batches int
	)

	cmd := &cobra.Command{
		Use:   "xlsx <path>",
		Short: "Verify businesses listed in an .xlsx workbook",
		Long: `Reads org_number, country_code, domain and name columns from the first
sheet. Invalid rows are reported and skipped. Progress is saved per workbook
name so a rerun continues where the last one stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, rowErrs, err := importer.ReadWorkbook(args[0])
			if err != nil {
				return err
			}
			renderImportErrors(cmd.OutOrStdout(), rowErrs)
			if len(rows) == 0 {
				return fmt.Errorf("%s has no valid rows", args[0])
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				return runBatches(ctx, cmd, app.SheetBot(name, rows), batches)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "cursor name (defaults to the file name)")
	cmd.Flags().IntVar(&batches, "batches", 0, "batches to import (0 runs the whole workbook)")
	return cmd
}

func importScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the registry import on importer.schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				sched, err := app.ImportScheduler()
				if err != nil {
					return err
				}
				sched.Start()
				<-ctx.Done()
				sched.Stop()
				return nil
			})
		},
	}
}

func importStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved import cursors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				bots, err := app.Cursors.Bots(ctx)
				if err != nil {
					return err
				}
				cursors := make(map[string]importer.Cursor, len(bots))
				for _, bot := range bots {
					var c importer.Cursor
					if _, getErr := app.Cursors.Get(ctx, bot, &c); getErr != nil {
						return fmt.Errorf("read cursor %s: %w", bot, getErr)
					}
					cursors[bot] = c
				}
				renderCursors(cmd.OutOrStdout(), cursors)
				return nil
			})
		},
	}
}

// runBatches runs up to limit batches (zero means until the catalog wraps)
// and prints what each one did. An interrupt keeps the completed batches.
func runBatches(ctx context.Context, cmd *cobra.Command, bot *importer.Bot, limit int) error {
	var results []importer.BatchResult
	defer func() { renderBatches(cmd.OutOrStdout(), bot.Name(), results) }()

	for limit <= 0 || len(results) < limit {
		res, err := bot.RunBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.FromContext(ctx).Info("Import interrupted", logger.String("bot", bot.Name()))
				return nil
			}
			return err
		}
		results = append(results, *res)
		if res.Wrapped {
			break
		}
	}
	return nil
}
