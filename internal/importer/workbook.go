package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook columns, in template order.
const (
	colOrgNumber   = "org_number"
	colCountryCode = "country_code"
	colDomain      = "domain"
	colName        = "name"

	headerRowIndex      = 1 // Excel rows are 1-based, header is row 1
	defaultSheetPageLen = 50
)

var templateColumns = []string{colOrgNumber, colCountryCode, colDomain, colName}

// WorkbookRow is a parsed data row.
type WorkbookRow struct {
	Row         int // Excel row number (for error reporting)
	OrgNumber   string
	CountryCode string
	Domain      string
	Name        string
}

// ImportError represents a validation error for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ValidateRow returns an error message, or "" for a usable row.
func ValidateRow(row WorkbookRow) string {
	if strings.TrimSpace(row.OrgNumber) == "" {
		return "org_number is required"
	}
	cc := strings.TrimSpace(row.CountryCode)
	if cc == "" {
		return "country_code is required"
	}
	if len(cc) != 2 {
		return "country_code must be a two-letter ISO code"
	}
	if row.Domain != "" && normalizeDomain(row.Domain) == "" {
		return "domain is not a valid host"
	}
	return ""
}

// ReadWorkbook parses the workbook at path.
func ReadWorkbook(path string) ([]WorkbookRow, []ImportError, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return ParseWorkbook(f)
}

// ParseWorkbook reads the first sheet. Columns are located by header name;
// a sheet without a recognizable header row is read in template order.
// Invalid rows are reported and skipped; blank rows are ignored.
func ParseWorkbook(r io.Reader) ([]WorkbookRow, []ImportError, error) {
	rows, err := openRows(r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	columns, hasHeader := columnMap(rows[0])
	first := 0
	if hasHeader {
		first = 1
	}

	var (
		parsed  []WorkbookRow
		invalid []ImportError
	)
	for i := first; i < len(rows); i++ {
		cells := rows[i]
		if blank(cells) {
			continue
		}
		row := WorkbookRow{
			Row:         i + headerRowIndex,
			OrgNumber:   strings.TrimSpace(cell(cells, columns[colOrgNumber])),
			CountryCode: strings.ToUpper(strings.TrimSpace(cell(cells, columns[colCountryCode]))),
			Domain:      strings.TrimSpace(cell(cells, columns[colDomain])),
			Name:        strings.TrimSpace(cell(cells, columns[colName])),
		}
		if msg := ValidateRow(row); msg != "" {
			invalid = append(invalid, ImportError{Row: row.Row, Error: msg})
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, invalid, nil
}

func openRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return [][]string{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

func columnMap(header []string) (map[string]int, bool) {
	columns := make(map[string]int, len(templateColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range templateColumns {
			if name == want {
				columns[want] = i
			}
		}
	}
	if _, ok := columns[colOrgNumber]; ok {
		return columns, true
	}

	for i, want := range templateColumns {
		columns[want] = i
	}
	return columns, false
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SheetCatalog serves parsed workbook rows as a paged catalog so a bot can
// import a large sheet in resumable batches.
type SheetCatalog struct {
	name    string
	rows    []WorkbookRow
	pageLen int
}

var _ Catalog = (*SheetCatalog)(nil)

// NewSheetCatalog creates a catalog named "xlsx_<name>".
func NewSheetCatalog(name string, rows []WorkbookRow, pageLen int) *SheetCatalog {
	if pageLen <= 0 {
		pageLen = defaultSheetPageLen
	}
	return &SheetCatalog{name: "xlsx_" + name, rows: rows, pageLen: pageLen}
}

// Name implements Catalog.
func (c *SheetCatalog) Name() string {
	return c.name
}

// ListPage implements Catalog.
func (c *SheetCatalog) ListPage(_ context.Context, page int) (*Page, error) {
	total := (len(c.rows) + c.pageLen - 1) / c.pageLen
	out := &Page{Number: page, TotalPages: total}

	start := page * c.pageLen
	if page < 0 || start >= len(c.rows) {
		return out, nil
	}
	end := min(start+c.pageLen, len(c.rows))
	for _, r := range c.rows[start:end] {
		out.Candidates = append(out.Candidates, Candidate{
			OrgNumber:   r.OrgNumber,
			CountryCode: r.CountryCode,
			Name:        r.Name,
			Domain:      r.Domain,
		})
	}
	return out, nil
}
