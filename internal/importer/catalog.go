// Package importer feeds businesses from external catalogs and spreadsheets
// into verification, resuming from persisted cursors.
package importer

import (
	"context"
	"fmt"

	"github.com/Meltveit/qrydex/internal/registry"
)

// Candidate is a business offered by a catalog.
type Candidate struct {
	OrgNumber   string
	CountryCode string
	Name        string
	Domain      string
}

// Page is one page of a catalog listing. Number is zero-based.
type Page struct {
	Number     int
	TotalPages int
	Candidates []Candidate
}

// Last reports whether no page follows this one.
func (p *Page) Last() bool {
	return p.Number+1 >= p.TotalPages
}

// Catalog lists candidates page by page in a stable order.
type Catalog interface {
	Name() string
	ListPage(ctx context.Context, page int) (*Page, error)
}

// BrregLister is the Brønnøysund listing endpoint.
type BrregLister interface {
	ListPage(ctx context.Context, page, size int, orgForm string) (*registry.ListingPage, error)
}

const defaultBrregPageSize = 100

// BrregCatalog lists active Norwegian entities that registered a homepage.
type BrregCatalog struct {
	lister   BrregLister
	pageSize int
	orgForm  string
}

var _ Catalog = (*BrregCatalog)(nil)

// NewBrregCatalog creates a catalog over lister. orgForm optionally
// restricts the listing, for example to "AS".
func NewBrregCatalog(lister BrregLister, pageSize int, orgForm string) *BrregCatalog {
	if pageSize <= 0 {
		pageSize = defaultBrregPageSize
	}
	return &BrregCatalog{lister: lister, pageSize: pageSize, orgForm: orgForm}
}

// Name implements Catalog.
func (c *BrregCatalog) Name() string {
	if c.orgForm != "" {
		return "brreg_" + c.orgForm
	}
	return "brreg"
}

// ListPage implements Catalog. Entities without a homepage are dropped.
func (c *BrregCatalog) ListPage(ctx context.Context, page int) (*Page, error) {
	listing, err := c.lister.ListPage(ctx, page, c.pageSize, c.orgForm)
	if err != nil {
		return nil, fmt.Errorf("brreg catalog: %w", err)
	}

	out := &Page{Number: listing.Page, TotalPages: listing.TotalPages}
	for _, e := range listing.Entries {
		if e.Homepage == "" {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			OrgNumber:   e.OrgNumber,
			CountryCode: "NO",
			Name:        e.Name,
			Domain:      e.Homepage,
		})
	}
	return out, nil
}
