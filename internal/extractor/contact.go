package extractor

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxEmails = 5
	maxPhones = 5

	minPhoneDigits = 8
	maxPhoneDigits = 15
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Phone numbers in text must either carry an international prefix or
// follow a phone label; bare digit runs are too ambiguous.
var (
	intlPhonePattern    = regexp.MustCompile(`(?:\+|\b00)\d[\d\s().\-]{6,20}\d`)
	labeledPhonePattern = regexp.MustCompile(`(?i)\b(?:tlf|telefon|phone|tel|puh|puhelin|mobil|mobile)\.?:?\s*((?:\+|00)?\d[\d\s().\-]{6,20}\d)`)
)

var deniedLocalParts = []string{
	"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon", "postmaster", "bounce",
}

var deniedEmailDomains = map[string]struct{}{
	"example.com": {}, "example.org": {}, "example.net": {}, "domain.com": {}, "email.com": {},
	"sentry.io": {}, "sentry-next.wixpress.com": {}, "wixpress.com": {}, "wix.com": {},
	"mailinator.com": {}, "guerrillamail.com": {}, "10minutemail.com": {}, "tempmail.com": {},
	"yopmail.com": {}, "trashmail.com": {}, "sharklasers.com": {}, "ingest.sentry.io": {},
}

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// Email role tiers; lower ranks first.
const (
	tierExecutive = iota
	tierDepartment
	tierGeneric
)

var executiveKeywords = []string{
	"ceo", "cfo", "cto", "coo", "daglig", "leder", "direktor", "director", "owner", "eier",
	"founder", "grunder", "contact", "kontakt", "post",
}

var departmentKeywords = []string{
	"sales", "salg", "support", "kundeservice", "service", "order", "ordre", "booking",
	"faktura", "invoice", "regnskap", "accounting", "hr", "jobb", "careers", "marketing",
	"presse", "press", "myynti", "asiakaspalvelu",
}

// ExtractEmails returns the unique, allowed addresses in text, lowercased,
// in order of first appearance.
func ExtractEmails(text string) []string {
	seen := make(map[string]struct{})
	var emails []string
	for _, m := range emailPattern.FindAllString(text, -1) {
		email := strings.TrimRight(strings.ToLower(m), ".-")
		if denied(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	return emails
}

func denied(email string) bool {
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	local, host, ok := strings.Cut(email, "@")
	if !ok {
		return true
	}
	for _, d := range deniedLocalParts {
		if strings.Contains(local, d) {
			return true
		}
	}
	if _, bad := deniedEmailDomains[host]; bad {
		return true
	}
	_, bad := deniedEmailDomains[RegistrableDomain(host)]
	return bad
}

// RankEmails orders addresses by role tier (executive and contact, then
// department, then generic), preferring the site's own domain within a
// tier, and keeps the top five. The sort is stable so appearance order
// breaks ties.
func RankEmails(emails []string, siteDomain string) []string {
	ranked := slices.Clone(emails)
	slices.SortStableFunc(ranked, func(a, b string) int {
		if ta, tb := emailTier(a), emailTier(b); ta != tb {
			return ta - tb
		}
		return ownDomainRank(a, siteDomain) - ownDomainRank(b, siteDomain)
	})
	if len(ranked) > maxEmails {
		ranked = ranked[:maxEmails]
	}
	if ranked == nil {
		return []string{}
	}
	return ranked
}

func emailTier(email string) int {
	local, _, _ := strings.Cut(email, "@")
	for _, kw := range executiveKeywords {
		if strings.Contains(local, kw) {
			return tierExecutive
		}
	}
	for _, kw := range departmentKeywords {
		if local == kw || strings.HasPrefix(local, kw) {
			return tierDepartment
		}
	}
	return tierGeneric
}

func ownDomainRank(email, siteDomain string) int {
	if siteDomain != "" && RegistrableDomain(emailDomain(email)) == siteDomain {
		return 0
	}
	return 1
}

// ExtractPhones collects tel: links from markup and labeled or
// international numbers from text. Numbers are normalized to digits with
// an optional leading "+", deduplicated, and kept only with 8 to 15 digits.
// A number whose digits end another number's digits counts as a duplicate.
func ExtractPhones(text string, markup []string) []string {
	var keys []string
	phones := []string{}
	add := func(raw string) {
		if len(phones) >= maxPhones {
			return
		}
		phone, ok := NormalizePhone(raw)
		if !ok {
			return
		}
		key := strings.TrimPrefix(phone, "+")
		for _, k := range keys {
			// A national number and its international form are the same phone.
			if strings.HasSuffix(k, key) || strings.HasSuffix(key, k) {
				return
			}
		}
		keys = append(keys, key)
		phones = append(phones, phone)
	}

	for _, m := range markup {
		if !strings.Contains(m, "tel:") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(m))
		if err != nil {
			continue
		}
		doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimPrefix(s.AttrOr("href", ""), "tel:")
			if unescaped, err := url.PathUnescape(href); err == nil {
				href = unescaped
			}
			add(href)
		})
	}
	for _, m := range labeledPhonePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range intlPhonePattern.FindAllString(text, -1) {
		add(m)
	}
	return phones
}

// NormalizePhone strips formatting from a phone number. A leading "00" is
// rewritten to "+". It reports false when the digit count is out of range.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if !plus && strings.HasPrefix(d, "00") {
		plus = true
		d = d[2:]
	}
	if len(d) < minPhoneDigits || len(d) > maxPhoneDigits {
		return "", false
	}
	if plus {
		return "+" + d, true
	}
	return d, true
}
