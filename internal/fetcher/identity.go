package fetcher

import (
	"sync/atomic"
)

// Identity is the set of browser headers sent with one request.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
}

var defaultIdentities = []Identity{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
		AcceptLanguage: "en-GB,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
		AcceptLanguage: "nb-NO,nb;q=0.9,no;q=0.8,en;q=0.7",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
		AcceptLanguage: "sv-SE,sv;q=0.9,en;q=0.8",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
		AcceptLanguage: "da-DK,da;q=0.9,en;q=0.8",
	},
}

// IdentityRotator hands out identities round-robin. Safe for concurrent use.
type IdentityRotator struct {
	identities []Identity
	next       atomic.Uint64
}

// NewIdentityRotator builds a rotator over the given user agents, or over the
// built-in browser identities when none are given.
func NewIdentityRotator(userAgents []string) *IdentityRotator {
	if len(userAgents) == 0 {
		return &IdentityRotator{identities: defaultIdentities}
	}
	ids := make([]Identity, 0, len(userAgents))
	for _, ua := range userAgents {
		ids = append(ids, Identity{UserAgent: ua, AcceptLanguage: "en-US,en;q=0.9"})
	}
	return &IdentityRotator{identities: ids}
}

// Next returns the next identity in the rotation.
func (r *IdentityRotator) Next() Identity {
	n := r.next.Add(1) - 1
	return r.identities[n%uint64(len(r.identities))]
}
