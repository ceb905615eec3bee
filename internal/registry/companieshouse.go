package registry

import (
	"context"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
)

const companiesHouseBaseURL = "https://api.company-information.service.gov.uk"

// SourceCompaniesHouse is the UK Companies House public data API.
const SourceCompaniesHouse = "companies_house"

var ukCompanyNumber = regexp.MustCompile(`^(?:[A-Z]{2}\d{6}|\d{8})$`)

type companiesHouseProfile struct {
	CompanyName    string   `json:"company_name"`
	CompanyNumber  string   `json:"company_number"`
	CompanyStatus  string   `json:"company_status"`
	DateOfCreation string   `json:"date_of_creation"`
	SICCodes       []string `json:"sic_codes"`
}

// CompaniesHouse looks up UK companies. It needs an API key.
type CompaniesHouse struct {
	src    httpSource
	apiKey string
	now    func() time.Time
}

// NewCompaniesHouse creates a Companies House source.
func NewCompaniesHouse(client *http.Client, apiKey string, cfg SourceConfig) *CompaniesHouse {
	return &CompaniesHouse{
		src:    newHTTPSource(SourceCompaniesHouse, client, cfg, companiesHouseBaseURL),
		apiKey: apiKey,
		now:    time.Now,
	}
}

// Name implements Lookup.
func (c *CompaniesHouse) Name() string { return SourceCompaniesHouse }

// Lookup implements Lookup. Short numeric company numbers are zero padded
// to eight digits.
func (c *CompaniesHouse) Lookup(ctx context.Context, id string) (*domain.RegistryData, error) {
	number := ukNumber(id)
	if !ukCompanyNumber.MatchString(number) {
		return nil, ErrNotFound
	}

	// The API key is the basic auth user name with an empty password.
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.apiKey+":")))

	var p companiesHouseProfile
	if _, err := c.src.getJSON(ctx, "/company/"+number, header, &p); err != nil {
		return nil, err
	}
	if p.CompanyName == "" {
		return nil, ErrNotFound
	}

	data := &domain.RegistryData{
		LegalName:            strings.TrimSpace(p.CompanyName),
		RegistrationDate:     parseDate(p.DateOfCreation),
		CompanyStatus:        NormalizeStatus(p.CompanyStatus),
		IndustryCodes:        []domain.IndustryCode{},
		Source:               SourceCompaniesHouse,
		LastVerifiedRegistry: c.now().UTC(),
	}
	for _, sic := range p.SICCodes {
		data.IndustryCodes = append(data.IndustryCodes, domain.IndustryCode{Code: sic})
	}
	return data, nil
}

func ukNumber(id string) string {
	id = strings.ToUpper(strings.Join(strings.Fields(id), ""))
	if d := digitsOnly(id); d == id && len(d) > 0 && len(d) < 8 {
		return strings.Repeat("0", 8-len(d)) + d
	}
	return id
}
