package registry

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
)

const openCorporatesBaseURL = "https://api.opencorporates.com/v0.4"

// SourceOpenCorporates is the OpenCorporates aggregator.
const SourceOpenCorporates = "opencorporates"

type ocIndustryCode struct {
	IndustryCode struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"industry_code"`
}

type ocResponse struct {
	Results struct {
		Company struct {
			Name              string           `json:"name"`
			CompanyNumber     string           `json:"company_number"`
			IncorporationDate string           `json:"incorporation_date"`
			DissolutionDate   string           `json:"dissolution_date"`
			CurrentStatus     string           `json:"current_status"`
			Inactive          *bool            `json:"inactive"`
			IndustryCodes     []ocIndustryCode `json:"industry_codes"`
		} `json:"company"`
	} `json:"results"`
}

// OpenCorporates is the fallback aggregator for any jurisdiction.
type OpenCorporates struct {
	src   httpSource
	token string
	now   func() time.Time
}

// NewOpenCorporates creates the aggregator client. The token is optional
// but unauthenticated use is heavily rate limited.
func NewOpenCorporates(client *http.Client, token string, cfg SourceConfig) *OpenCorporates {
	return &OpenCorporates{
		src:   newHTTPSource(SourceOpenCorporates, client, cfg, openCorporatesBaseURL),
		token: token,
		now:   time.Now,
	}
}

// ForJurisdiction returns a Lookup bound to one jurisdiction code.
func (o *OpenCorporates) ForJurisdiction(country string) Lookup {
	return &ocJurisdiction{oc: o, jurisdiction: strings.ToLower(strings.TrimSpace(country))}
}

type ocJurisdiction struct {
	oc           *OpenCorporates
	jurisdiction string
}

func (j *ocJurisdiction) Name() string { return SourceOpenCorporates }

func (j *ocJurisdiction) Lookup(ctx context.Context, id string) (*domain.RegistryData, error) {
	number := strings.Join(strings.Fields(id), "")
	if number == "" || j.jurisdiction == "" {
		return nil, ErrNotFound
	}

	path := "/companies/" + url.PathEscape(j.jurisdiction) + "/" + url.PathEscape(number)
	if j.oc.token != "" {
		path += "?" + url.Values{"api_token": {j.oc.token}}.Encode()
	}

	var resp ocResponse
	if _, err := j.oc.src.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	co := &resp.Results.Company
	if co.Name == "" {
		return nil, ErrNotFound
	}

	status := NormalizeStatus(co.CurrentStatus)
	switch {
	case co.DissolutionDate != "":
		status = domain.CompanyStatusDissolved
	case status == domain.CompanyStatusUnknown && co.Inactive != nil && !*co.Inactive:
		status = domain.CompanyStatusActive
	}

	data := &domain.RegistryData{
		LegalName:            strings.TrimSpace(co.Name),
		RegistrationDate:     parseDate(co.IncorporationDate),
		CompanyStatus:        status,
		IndustryCodes:        []domain.IndustryCode{},
		Source:               SourceOpenCorporates,
		LastVerifiedRegistry: j.oc.now().UTC(),
	}
	for _, ic := range co.IndustryCodes {
		if ic.IndustryCode.Code != "" {
			data.IndustryCodes = append(data.IndustryCodes, domain.IndustryCode{
				Code:        ic.IndustryCode.Code,
				Description: ic.IndustryCode.Description,
			})
		}
	}
	return data, nil
}
