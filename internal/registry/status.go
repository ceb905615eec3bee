package registry

import (
	"strings"

	"github.com/Meltveit/qrydex/internal/domain"
)

// statusVocabulary maps lowercased source statuses onto the common set.
var statusVocabulary = map[string]domain.CompanyStatus{
	"active":     domain.CompanyStatusActive,
	"aktiv":      domain.CompanyStatusActive,
	"normal":     domain.CompanyStatusActive,
	"registered": domain.CompanyStatusActive,
	"live":       domain.CompanyStatusActive,
	"open":       domain.CompanyStatusActive,

	"dissolved":        domain.CompanyStatusDissolved,
	"closed":           domain.CompanyStatusDissolved,
	"converted-closed": domain.CompanyStatusDissolved,
	"deleted":          domain.CompanyStatusDissolved,
	"inactive":         domain.CompanyStatusDissolved,
	"ceased":           domain.CompanyStatusDissolved,
	"struck off":       domain.CompanyStatusDissolved,
	"bankrupt":         domain.CompanyStatusDissolved,
	"konkurs":          domain.CompanyStatusDissolved,
	"slettet":          domain.CompanyStatusDissolved,
	"ophørt":           domain.CompanyStatusDissolved,
	"opløst":           domain.CompanyStatusDissolved,
	"lakannut":         domain.CompanyStatusDissolved,

	"liquidation":            domain.CompanyStatusLiquidation,
	"in liquidation":         domain.CompanyStatusLiquidation,
	"under avvikling":        domain.CompanyStatusLiquidation,
	"tvangsavvikling":        domain.CompanyStatusLiquidation,
	"under likvidation":      domain.CompanyStatusLiquidation,
	"under konkurs":          domain.CompanyStatusLiquidation,
	"insolvency-proceedings": domain.CompanyStatusLiquidation,
	"receivership":           domain.CompanyStatusLiquidation,
	"administration":         domain.CompanyStatusLiquidation,
	"selvitystila":           domain.CompanyStatusLiquidation,
}

// NormalizeStatus maps a source status string onto Active, Dissolved,
// Liquidation or Unknown.
func NormalizeStatus(raw string) domain.CompanyStatus {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return domain.CompanyStatusUnknown
	}
	if s, ok := statusVocabulary[key]; ok {
		return s
	}
	switch {
	case strings.Contains(key, "liquidation"), strings.Contains(key, "avvikling"):
		return domain.CompanyStatusLiquidation
	case strings.Contains(key, "dissolved"), strings.Contains(key, "closed"):
		return domain.CompanyStatusDissolved
	}
	return domain.CompanyStatusUnknown
}
