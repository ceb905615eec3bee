package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
)

const brregBaseURL = "https://data.brreg.no/enhetsregisteret/api"

// SourceBrreg is the Brønnøysund Register Centre.
const SourceBrreg = "brreg"

type brregCode struct {
	Code        string `json:"kode"`
	Description string `json:"beskrivelse"`
}

// brregEntity is an entity from Enhetsregisteret.
type brregEntity struct {
	OrgNumber         string     `json:"organisasjonsnummer"`
	Name              string     `json:"navn"`
	OrgForm           *brregCode `json:"organisasjonsform"`
	Homepage          string     `json:"hjemmeside"`
	RegistrationDate  string     `json:"registreringsdatoEnhetsregisteret"`
	FoundedDate       string     `json:"stiftelsesdato"`
	Industry1         *brregCode `json:"naeringskode1"`
	Industry2         *brregCode `json:"naeringskode2"`
	Industry3         *brregCode `json:"naeringskode3"`
	Employees         *int       `json:"antallAnsatte"`
	Bankrupt          bool       `json:"konkurs"`
	UnderLiquidation  bool       `json:"underAvvikling"`
	ForcedLiquidation bool       `json:"underTvangsavviklingEllerTvangsopplosning"`
	DeletedDate       string     `json:"slettedato"`
}

type brregPage struct {
	Embedded struct {
		Entities []brregEntity `json:"enheter"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

// Brreg looks up Norwegian entities in Enhetsregisteret and pages through
// its listing for imports.
type Brreg struct {
	src httpSource
	now func() time.Time
}

// NewBrreg creates a Brønnøysund source.
func NewBrreg(client *http.Client, cfg SourceConfig) *Brreg {
	return &Brreg{src: newHTTPSource(SourceBrreg, client, cfg, brregBaseURL), now: time.Now}
}

// Name implements Lookup.
func (b *Brreg) Name() string { return SourceBrreg }

// Lookup implements Lookup. A deleted entity (HTTP 410) is reported as
// Dissolved rather than not found.
func (b *Brreg) Lookup(ctx context.Context, id string) (*domain.RegistryData, error) {
	orgNumber := digitsOnly(id)
	if len(orgNumber) != 9 {
		return nil, ErrNotFound
	}

	var e brregEntity
	status, err := b.src.getJSON(ctx, "/enheter/"+orgNumber, nil, &e, http.StatusGone)
	if err != nil {
		return nil, err
	}
	if status == http.StatusGone {
		data := &domain.RegistryData{
			LegalName:            e.Name,
			CompanyStatus:        domain.CompanyStatusDissolved,
			IndustryCodes:        []domain.IndustryCode{},
			Source:               SourceBrreg,
			LastVerifiedRegistry: b.now().UTC(),
		}
		return data, nil
	}
	return b.normalize(&e), nil
}

func (b *Brreg) normalize(e *brregEntity) *domain.RegistryData {
	data := &domain.RegistryData{
		LegalName:            strings.TrimSpace(e.Name),
		CompanyStatus:        brregStatus(e),
		IndustryCodes:        []domain.IndustryCode{},
		EmployeeCount:        e.Employees,
		Website:              e.Homepage,
		Source:               SourceBrreg,
		LastVerifiedRegistry: b.now().UTC(),
	}
	data.RegistrationDate = parseDate(e.FoundedDate)
	if data.RegistrationDate == nil {
		data.RegistrationDate = parseDate(e.RegistrationDate)
	}
	for _, c := range []*brregCode{e.Industry1, e.Industry2, e.Industry3} {
		if c != nil && c.Code != "" {
			data.IndustryCodes = append(data.IndustryCodes, domain.IndustryCode{Code: c.Code, Description: c.Description})
		}
	}
	return data
}

func brregStatus(e *brregEntity) domain.CompanyStatus {
	switch {
	case e.DeletedDate != "", e.Bankrupt:
		return domain.CompanyStatusDissolved
	case e.UnderLiquidation, e.ForcedLiquidation:
		return domain.CompanyStatusLiquidation
	default:
		return domain.CompanyStatusActive
	}
}

// ListingEntry is one entity from the Brønnøysund listing.
type ListingEntry struct {
	OrgNumber string
	Name      string
	Homepage  string
}

// ListingPage is one page of the Brønnøysund listing.
type ListingPage struct {
	Entries    []ListingEntry
	Page       int
	TotalPages int
}

// ListPage returns one page of active entities, sorted by org number and
// optionally restricted to an organization form such as "AS".
func (b *Brreg) ListPage(ctx context.Context, page, size int, orgForm string) (*ListingPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("sort", "organisasjonsnummer,ASC")
	q.Set("konkurs", "false")
	q.Set("underAvvikling", "false")
	if orgForm != "" {
		q.Set("organisasjonsform", orgForm)
	}

	var p brregPage
	if _, err := b.src.getJSON(ctx, "/enheter?"+q.Encode(), nil, &p); err != nil {
		return nil, fmt.Errorf("list brreg page %d: %w", page, err)
	}

	out := &ListingPage{Page: p.Page.Number, TotalPages: p.Page.TotalPages}
	for _, e := range p.Embedded.Entities {
		out.Entries = append(out.Entries, ListingEntry{
			OrgNumber: e.OrgNumber,
			Name:      strings.TrimSpace(e.Name),
			Homepage:  strings.TrimSpace(e.Homepage),
		})
	}
	return out, nil
}
