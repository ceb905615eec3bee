package domain

import "time"

// AuditOutcome is the result recorded for one verification run.
type AuditOutcome string

// Audit outcomes.
const (
	AuditSuccess  AuditOutcome = "success"
	AuditNotFound AuditOutcome = "not_found"
	AuditFailure  AuditOutcome = "failure"
)

// AuditEntry records one verification run for a business.
type AuditEntry struct {
	ID            string       `db:"id"             json:"id"`
	OrgNumber     string       `db:"org_number"     json:"org_number"`
	CountryCode   string       `db:"country_code"   json:"country_code"`
	Source        string       `db:"source"         json:"source"`
	Outcome       AuditOutcome `db:"outcome"        json:"outcome"`
	RegistryScore int          `db:"registry_score" json:"registry_score"`
	QualityScore  int          `db:"quality_score"  json:"quality_score"`
	TrustScore    int          `db:"trust_score"    json:"trust_score"`
	Reason        string       `db:"reason"         json:"reason,omitempty"`
	CreatedAt     time.Time    `db:"created_at"     json:"created_at"`
}
