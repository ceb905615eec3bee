package extractor

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// freemailDomains are consumer mailbox providers; an address there is not
// a professional contact address.
var freemailDomains = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {}, "hotmail.com": {}, "hotmail.no": {},
	"outlook.com": {}, "live.com": {}, "live.no": {}, "msn.com": {},
	"yahoo.com": {}, "yahoo.no": {}, "icloud.com": {}, "me.com": {},
	"online.no": {}, "gmx.de": {}, "gmx.net": {}, "web.de": {},
	"aol.com": {}, "protonmail.com": {}, "proton.me": {}, "mail.com": {},
	"hotmail.se": {}, "telia.com": {}, "jubii.dk": {}, "suomi24.fi": {},
}

// RegistrableDomain returns the eTLD+1 of host ("www.shop.example.co.uk"
// gives "example.co.uk"). Hosts without a public suffix are returned
// and IP addresses are returned lowercased as they are.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

// IsFreemail reports whether the address is hosted by a consumer provider.
func IsFreemail(email string) bool {
	_, ok := freemailDomains[emailDomain(email)]
	return ok
}

// IsProfessionalEmail reports whether email is on a business domain. When
// siteDomain is known the address must share its registrable domain.
func IsProfessionalEmail(email, siteDomain string) bool {
	d := emailDomain(email)
	if d == "" || IsFreemail(email) {
		return false
	}
	if siteDomain == "" {
		return true
	}
	return RegistrableDomain(d) == RegistrableDomain(siteDomain)
}

func hasProfessionalEmail(emails []string, siteDomain string) bool {
	for _, e := range emails {
		if IsProfessionalEmail(e, siteDomain) {
			return true
		}
	}
	return false
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
