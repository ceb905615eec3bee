package extractor

import (
	"regexp"
	"strings"
)

// taxScheme is one country's registration or VAT identifier format.
type taxScheme struct {
	country string
	pattern *regexp.Regexp
	// digits is the expected digit count after stripping separators.
	digits int
	valid  func(digits string) bool
}

// taxSchemes is tried in order; the first valid match wins.
var taxSchemes = []taxScheme{
	{
		country: "NO",
		pattern: regexp.MustCompile(`(?i)(?:org(?:anisasjons)?\.?\s*-?\s*(?:nr|nummer)\.?|foretaksregisteret|\bNO)[:\s.]*(\d{3}[\s.]?\d{3}[\s.]?\d{3})(?:\s*MVA)?\b`),
		digits:  9,
		valid:   validNorwegianOrgNumber,
	},
	{
		country: "DK",
		pattern: regexp.MustCompile(`(?i)(?:\bCVR(?:-?\s*nr\.?)?|\bSE-nr\.?|\bDK)[:\s.\-]*(\d{2}\s?\d{2}\s?\d{2}\s?\d{2})\b`),
		digits:  8,
		valid:   validDanishCVR,
	},
	{
		country: "SE",
		pattern: regexp.MustCompile(`(?i)(?:org(?:anisations)?\.?\s*-?\s*(?:nr|nummer)\.?|\bSE)[:\s.]*(\d{6}-?\d{4})(?:01)?\b`),
		digits:  10,
		valid:   luhnValid,
	},
	{
		country: "FI",
		pattern: regexp.MustCompile(`(?i)(?:y-tunnus|business\s+id|fo-nummer|\bFI)[:\s.]*(\d{7}-?\d)\b`),
		digits:  8,
		valid:   validFinnishBusinessID,
	},
	{
		country: "DE",
		pattern: regexp.MustCompile(`(?i)(?:ust-?id(?:nr)?\.?[:\s]*)?\bDE\s?(\d{9})\b`),
		digits:  9,
	},
	{
		country: "GB",
		pattern: regexp.MustCompile(`(?i)\bGB\s?(\d{3}\s?\d{4}\s?\d{2})\b`),
		digits:  9,
	},
	{
		country: "NL",
		pattern: regexp.MustCompile(`(?i)\bNL\s?(\d{9}B\d{2})\b`),
	},
	{
		country: "FR",
		pattern: regexp.MustCompile(`(?i)\bFR\s?([0-9A-Z]{2}\s?\d{9})\b`),
	},
}

// TaxCountries lists the countries with a known identifier scheme.
func TaxCountries() []string {
	out := make([]string, 0, len(taxSchemes))
	for _, s := range taxSchemes {
		out = append(out, s.country)
	}
	return out
}

// MatchTaxID finds the first valid registration or VAT identifier in text.
// The scheme for country, if any, is tried first. The result is the
// country prefix followed by the compact identifier, e.g. "NO912676951".
func MatchTaxID(text, country string) (string, bool) {
	country = strings.ToUpper(country)
	for _, s := range taxSchemes {
		if s.country == country {
			if id, ok := s.match(text); ok {
				return id, true
			}
		}
	}
	for _, s := range taxSchemes {
		if s.country == country {
			continue
		}
		if id, ok := s.match(text); ok {
			return id, true
		}
	}
	return "", false
}

func (s taxScheme) match(text string) (string, bool) {
	for _, m := range s.pattern.FindAllStringSubmatch(text, -1) {
		compact := strings.ToUpper(stripSeparators(m[1]))
		if s.digits > 0 && len(compact) != s.digits {
			continue
		}
		if s.valid != nil && !s.valid(compact) {
			continue
		}
		return s.country + compact, true
	}
	return "", false
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-':
			return -1
		}
		return r
	}, s)
}

// TaxIDDigits returns the digits of a compact identifier, dropping any
// country prefix ("NO912676951" gives "912676951").
func TaxIDDigits(id string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)
}

func mod11(digits string, weights []int) (int, bool) {
	if len(digits) != len(weights) {
		return 0, false
	}
	sum := 0
	for i, w := range weights {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return 0, false
		}
		sum += d * w
	}
	return sum % 11, true
}

// validNorwegianOrgNumber checks the mod-11 control digit of a Brønnøysund
// organization number.
func validNorwegianOrgNumber(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	rem, ok := mod11(digits[:8], []int{3, 2, 7, 6, 5, 4, 3, 2})
	if !ok {
		return false
	}
	check := 11 - rem
	if check == 11 {
		check = 0
	}
	return check != 10 && check == int(digits[8]-'0')
}

// validDanishCVR checks that the weighted digit sum is divisible by 11.
func validDanishCVR(digits string) bool {
	rem, ok := mod11(digits, []int{2, 7, 6, 5, 4, 3, 2, 1})
	return ok && rem == 0
}

// validFinnishBusinessID checks the Y-tunnus control digit.
func validFinnishBusinessID(digits string) bool {
	if len(digits) != 8 {
		return false
	}
	rem, ok := mod11(digits[:7], []int{7, 9, 10, 5, 8, 4, 2})
	if !ok || rem == 1 {
		return false
	}
	check := 0
	if rem > 1 {
		check = 11 - rem
	}
	return check == int(digits[7]-'0')
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
