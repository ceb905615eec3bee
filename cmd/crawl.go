package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Meltveit/qrydex/internal/bootstrap"
)

func crawlCommand() *cobra.Command {
	var (
		maxPages int
		country  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <domain>",
		Short: "Crawl one website and print the extracted signals",
		Long:  `Crawls a single domain with the production fetcher and extractor. Nothing is stored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				result, err := app.Crawler.Crawl(ctx, args[0], maxPages)
				if err != nil {
					return fmt.Errorf("crawl %s: %w", args[0], err)
				}
				data := app.Extractor.ExtractForCountry(result, country)

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				renderCrawl(out, result, data)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget (0 uses crawler.max_pages)")
	cmd.Flags().StringVar(&country, "country", "", "ISO country code used for tax id patterns")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw crawl result as JSON")
	return cmd
}
