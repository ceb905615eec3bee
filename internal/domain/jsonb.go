package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column into dst. NULL and empty payloads leave
// dst at its zero value.
func scanJSON(value any, dst any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type %T for JSONB column", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (s *Sitelinks) Scan(value any) error { return scanJSON(value, s) }

// Value implements driver.Valuer; a nil slice is stored as [].
func (s Sitelinks) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]Sitelink(s))
}

// Scan implements sql.Scanner.
func (m *SocialMedia) Scan(value any) error { return scanJSON(value, m) }

// Value implements driver.Valuer; a nil map is stored as {}.
func (m SocialMedia) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return valueJSON(map[string]string(m))
}

// Scan implements sql.Scanner.
func (c *ContactInfo) Scan(value any) error { return scanJSON(value, c) }

// Value implements driver.Valuer.
func (c ContactInfo) Value() (driver.Value, error) { return valueJSON(c) }

// Scan implements sql.Scanner.
func (t *Translations) Scan(value any) error { return scanJSON(value, t) }

// Value implements driver.Valuer; a nil map is stored as {}.
func (t Translations) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return valueJSON(map[string]Translation(t))
}

// Scan implements sql.Scanner.
func (b *TrustScoreBreakdown) Scan(value any) error { return scanJSON(value, b) }

// Value implements driver.Valuer.
func (b TrustScoreBreakdown) Value() (driver.Value, error) { return valueJSON(b) }

// Scan implements sql.Scanner.
func (r *RegistryData) Scan(value any) error { return scanJSON(value, r) }

// Value implements driver.Valuer; an empty snapshot is stored as NULL.
func (r RegistryData) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return valueJSON(r)
}

// Scan implements sql.Scanner.
func (s *SiteSignals) Scan(value any) error { return scanJSON(value, s) }

// Value implements driver.Valuer.
func (s SiteSignals) Value() (driver.Value, error) { return valueJSON(s) }
