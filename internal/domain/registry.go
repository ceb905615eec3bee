package domain

import "time"

// CompanyStatus is the normalized registry status.
type CompanyStatus string

// Normalized company statuses.
const (
	CompanyStatusActive      CompanyStatus = "Active"
	CompanyStatusDissolved   CompanyStatus = "Dissolved"
	CompanyStatusLiquidation CompanyStatus = "Liquidation"
	CompanyStatusUnknown     CompanyStatus = "Unknown"
)

// IndustryCode is one classification code reported by a registry.
type IndustryCode struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// RegistryData is the normalized registry snapshot for a business.
type RegistryData struct {
	LegalName            string         `json:"legal_name"`
	RegistrationDate     *time.Time     `json:"registration_date,omitempty"`
	CompanyStatus        CompanyStatus  `json:"company_status"`
	IndustryCodes        []IndustryCode `json:"industry_codes"`
	EmployeeCount        *int           `json:"employee_count,omitempty"`
	Website              string         `json:"website,omitempty"`
	Source               string         `json:"source"`
	LastVerifiedRegistry time.Time      `json:"last_verified_registry"`
}

// IsZero reports whether no registry lookup has populated the snapshot.
func (r RegistryData) IsZero() bool {
	return r.LegalName == "" && r.CompanyStatus == "" && r.Source == ""
}

// Stale reports whether the snapshot is missing or older than maxAge.
func (r RegistryData) Stale(now time.Time, maxAge time.Duration) bool {
	return r.IsZero() || now.Sub(r.LastVerifiedRegistry) > maxAge
}

// RiskSignals summarize red flags found by text analysis.
type RiskSignals struct {
	// Level is one of "low", "neutral", "high".
	Level    string   `json:"level"`
	RedFlags []string `json:"red_flags"`
	// Sentiment is in [-1, 1] and only meaningful when HasSentiment is set.
	Sentiment    float64 `json:"sentiment"`
	HasSentiment bool    `json:"has_sentiment"`
}

// Risk levels.
const (
	RiskLow     = "low"
	RiskNeutral = "neutral"
	RiskHigh    = "high"
)

// NeutralRisk is the risk value used when no analysis is available.
func NeutralRisk() RiskSignals {
	return RiskSignals{Level: RiskNeutral, RedFlags: []string{}}
}
