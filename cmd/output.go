package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
	"github.com/Meltveit/qrydex/internal/importer"
	"github.com/Meltveit/qrydex/internal/orchestrator"
)

const (
	titleColumnWidth = 40
	urlColumnWidth   = 60
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func renderCrawl(w io.Writer, result *crawler.CrawlResult, data *extractor.EnrichedData) {
	t := newTable(w, "Pages: "+result.BaseURL)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: urlColumnWidth},
		{Number: 3, WidthMax: titleColumnWidth},
		{Number: 4, Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{"#", "URL", "Title", "Status", "Fetch"})
	for i, p := range result.Pages {
		t.AppendRow(table.Row{i + 1, p.URL, p.Title, p.StatusCode, p.FetchDuration.Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"", "Fetched", result.Stats.PagesFetched, "Failed", result.Stats.PagesFailed})
	t.Render()

	if data == nil {
		return
	}
	s := newTable(w, "Signals")
	s.AppendRows([]table.Row{
		{"HTTPS", data.HTTPS},
		{"Description", data.CompanyDescription},
		{"Industry", data.IndustryCategory},
		{"Emails", strings.Join(data.Emails, ", ")},
		{"Phones", strings.Join(data.Phones, ", ")},
		{"Tax ID", data.TaxID},
		{"Languages", strings.Join(data.Languages, ", ")},
		{"Structured data", data.StructuredData},
	})
	s.Render()
}

func renderOutcome(w io.Writer, out *orchestrator.Outcome) {
	t := newTable(w, "Verification")
	a := out.Audit
	t.AppendRows([]table.Row{
		{"Business", a.CountryCode + ":" + a.OrgNumber},
		{"Outcome", a.Outcome},
		{"Source", a.Source},
		{"Registry score", a.RegistryScore},
		{"Quality score", a.QualityScore},
		{"Trust score", a.TrustScore},
	})
	if a.Reason != "" {
		t.AppendRow(table.Row{"Reason", a.Reason})
	}
	t.Render()

	if out.Record != nil {
		renderBreakdown(w, out.Record)
	}
}

func renderBreakdown(w io.Writer, rec *domain.BusinessRecord) {
	t := newTable(w, fmt.Sprintf("%s (%d)", rec.Name, rec.TrustScore))
	t.AppendHeader(table.Row{"Bucket", "Score", "Max", "Signals"})
	b := rec.TrustScoreBreakdown
	for _, row := range []struct {
		name   string
		bucket domain.BucketScore
	}{
		{"registry", b.Registry},
		{"quality", b.Quality},
		{"social", b.Social},
		{"technical", b.Technical},
		{"news", b.News},
	} {
		t.AppendRow(table.Row{row.name, row.bucket.Score, row.bucket.Max, strings.Join(row.bucket.Signals, ", ")})
	}
	t.AppendFooter(table.Row{"total", b.Total(), "", ""})
	t.Render()
}

func renderBatches(w io.Writer, bot string, results []importer.BatchResult) {
	t := newTable(w, "Import: "+bot)
	t.AppendHeader(table.Row{"Page", "Candidates", "Verified", "Not found", "Failed", "Wrapped"})
	var total importer.BatchResult
	for _, r := range results {
		t.AppendRow(table.Row{r.Page, r.Candidates, r.Verified, r.NotFound, r.Failed, r.Wrapped})
		total.Candidates += r.Candidates
		total.Verified += r.Verified
		total.NotFound += r.NotFound
		total.Failed += r.Failed
	}
	t.AppendFooter(table.Row{"total", total.Candidates, total.Verified, total.NotFound, total.Failed, ""})
	t.Render()
}

func renderImportErrors(w io.Writer, errs []importer.ImportError) {
	if len(errs) == 0 {
		return
	}
	t := newTable(w, "Rejected rows")
	t.AppendHeader(table.Row{"Row", "Error"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Row, e.Error})
	}
	t.Render()
}

func renderCursors(w io.Writer, cursors map[string]importer.Cursor) {
	t := newTable(w, "Import cursors")
	t.AppendHeader(table.Row{"Bot", "Page", "Last org number", "Cycles"})
	for name, c := range cursors {
		t.AppendRow(table.Row{name, c.Page, c.LastOrgNumber, c.Cycles})
	}
	t.SortBy([]table.SortBy{{Name: "Bot", Mode: table.Asc}})
	t.Render()
}
