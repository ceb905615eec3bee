package registry

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
)

const prhBaseURL = "https://avoindata.prh.fi/opendata-ytj-api/v3"

// SourcePRH is the Finnish Patent and Registration Office open data API.
const SourcePRH = "prh"

var finnishBusinessID = regexp.MustCompile(`^\d{7}-\d$`)

type prhCompany struct {
	BusinessID struct {
		Value            string `json:"value"`
		RegistrationDate string `json:"registrationDate"`
	} `json:"businessId"`
	Names []struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		EndDate string `json:"endDate"`
	} `json:"names"`
	MainBusinessLine *struct {
		Type         string `json:"type"`
		Descriptions []struct {
			LanguageCode string `json:"languageCode"`
			Description  string `json:"description"`
		} `json:"descriptions"`
	} `json:"mainBusinessLine"`
	Website *struct {
		URL string `json:"url"`
	} `json:"website"`
	Status     string `json:"status"`
	EndDate    string `json:"endDate"`
	Situations []struct {
		Type    string `json:"type"`
		EndDate string `json:"endDate"`
	} `json:"companySituations"`
}

type prhResponse struct {
	TotalResults int          `json:"totalResults"`
	Companies    []prhCompany `json:"companies"`
}

// PRH looks up Finnish companies by Y-tunnus.
type PRH struct {
	src httpSource
	now func() time.Time
}

// NewPRH creates a PRH source.
func NewPRH(client *http.Client, cfg SourceConfig) *PRH {
	return &PRH{src: newHTTPSource(SourcePRH, client, cfg, prhBaseURL), now: time.Now}
}

// Name implements Lookup.
func (p *PRH) Name() string { return SourcePRH }

// Lookup implements Lookup. Identifiers are accepted with or without the
// dash and with an "FI" VAT prefix.
func (p *PRH) Lookup(ctx context.Context, id string) (*domain.RegistryData, error) {
	businessID := finnishID(id)
	if !finnishBusinessID.MatchString(businessID) {
		return nil, ErrNotFound
	}

	var resp prhResponse
	if _, err := p.src.getJSON(ctx, "/companies?"+url.Values{"businessId": {businessID}}.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Companies) == 0 {
		return nil, ErrNotFound
	}
	co := &resp.Companies[0]

	data := &domain.RegistryData{
		LegalName:            prhName(co),
		RegistrationDate:     parseDate(co.BusinessID.RegistrationDate),
		CompanyStatus:        prhStatus(co),
		IndustryCodes:        []domain.IndustryCode{},
		Source:               SourcePRH,
		LastVerifiedRegistry: p.now().UTC(),
	}
	if co.Website != nil {
		data.Website = strings.TrimSpace(co.Website.URL)
	}
	if line := co.MainBusinessLine; line != nil && line.Type != "" {
		code := domain.IndustryCode{Code: line.Type}
		for _, d := range line.Descriptions {
			// Language code 3 is English.
			if d.LanguageCode == "3" || code.Description == "" {
				code.Description = d.Description
			}
		}
		data.IndustryCodes = append(data.IndustryCodes, code)
	}
	return data, nil
}

func finnishID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "FI")
	digits := digitsOnly(id)
	if len(digits) != 8 {
		return id
	}
	return digits[:7] + "-" + digits[7:]
}

func prhName(co *prhCompany) string {
	for _, n := range co.Names {
		// Type 1 is the official name; ended names are historical.
		if n.Type == "1" && n.EndDate == "" {
			return strings.TrimSpace(n.Name)
		}
	}
	if len(co.Names) > 0 {
		return strings.TrimSpace(co.Names[0].Name)
	}
	return ""
}

// PRH company situations: SANE liquidation, KONK bankruptcy, YRJ restructuring.
func prhStatus(co *prhCompany) domain.CompanyStatus {
	if co.EndDate != "" {
		return domain.CompanyStatusDissolved
	}
	for _, s := range co.Situations {
		if s.EndDate != "" {
			continue
		}
		switch strings.ToUpper(s.Type) {
		case "KONK":
			return domain.CompanyStatusDissolved
		case "SANE", "YRJ":
			return domain.CompanyStatusLiquidation
		}
	}
	switch co.Status {
	case "", "1", "2":
		return domain.CompanyStatusActive
	}
	return NormalizeStatus(co.Status)
}
