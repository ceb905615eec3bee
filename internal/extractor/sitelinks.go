package extractor

import (
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
)

const (
	maxSitelinks           = 6
	maxSitelinkDescription = 160

	urlMatchBonus   = 5
	titleMatchBonus = 3
	maxDepthBonus   = 3
)

// typePriority is the base score of each sitelink type.
var typePriority = map[domain.SitelinkType]int{
	domain.SitelinkContact:   100,
	domain.SitelinkAbout:     90,
	domain.SitelinkTeam:      80,
	domain.SitelinkProducts:  70,
	domain.SitelinkInvestors: 70,
	domain.SitelinkNews:      60,
	domain.SitelinkOther:     10,
}

// classification is checked in order; the first type with a matching
// keyword wins.
var classification = []struct {
	kind     domain.SitelinkType
	keywords []string
}{
	{domain.SitelinkContact, []string{"contact", "kontakt", "yhteys", "yhteystiedot", "contacto", "find-us", "finn-oss"}},
	{domain.SitelinkAbout, []string{"about", "om-oss", "omoss", "om oss", "om-os", "om os", "ueber-uns", "uber-uns", "über uns", "meista", "tietoa", "who-we-are", "selskapet", "historie", "history"}},
	{domain.SitelinkTeam, []string{"team", "ansatte", "medarbeidere", "medarbetare", "people", "henkilosto", "ledelse", "management", "styret"}},
	{domain.SitelinkInvestors, []string{"investor", "aksjonaer", "aksjonær", "shareholder", "arsrapport", "årsrapport", "annual-report"}},
	{domain.SitelinkProducts, []string{"product", "produkt", "service", "tjenester", "tjanster", "tjänster", "palvelut", "losninger", "løsninger", "solution", "sortiment", "shop", "butikk"}},
	{domain.SitelinkNews, []string{"news", "nyheter", "nyheder", "aktuelt", "presse", "press", "blog", "uutiset", "artikler"}},
}

// deniedSitelinkTerms drop a page from selection entirely.
var deniedSitelinkTerms = []string{
	"privacy", "cookie", "terms", "personvern", "vilkår", "vilkar", "gdpr", "datenschutz", "impressum-datenschutz",
	"integritet", "tietosuoja", "login", "logg-inn", "cart", "handlekurv",
}

var titleSeparators = []string{" | ", " - ", " – ", " — "}

type sitelinkCandidate struct {
	link  domain.Sitelink
	order int
}

// SelectSitelinks classifies every non-homepage page, keeps the best page
// per type and returns at most six, highest score first. Ties keep the
// earlier page.
func SelectSitelinks(pages []crawler.PageResult) []domain.Sitelink {
	if len(pages) == 0 {
		return []domain.Sitelink{}
	}
	homeKey, _ := crawler.URLKey(pages[0].URL)

	best := make(map[domain.SitelinkType]sitelinkCandidate)
	for i := 1; i < len(pages); i++ {
		p := &pages[i]
		if key, err := crawler.URLKey(p.URL); err == nil && key == homeKey {
			continue
		}
		link, ok := ClassifyPage(p)
		if !ok {
			continue
		}
		if cur, exists := best[link.Type]; !exists || link.Score > cur.link.Score {
			best[link.Type] = sitelinkCandidate{link: link, order: i}
		}
	}

	candidates := make([]sitelinkCandidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	slices.SortFunc(candidates, func(a, b sitelinkCandidate) int {
		if a.link.Score != b.link.Score {
			return b.link.Score - a.link.Score
		}
		return a.order - b.order
	})

	out := make([]domain.Sitelink, 0, min(len(candidates), maxSitelinks))
	for _, c := range candidates {
		if len(out) == maxSitelinks {
			break
		}
		out = append(out, c.link)
	}
	return out
}

// ClassifyPage turns a page into a scored sitelink. It reports false for
// deny-listed pages.
func ClassifyPage(p *crawler.PageResult) (domain.Sitelink, bool) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return domain.Sitelink{}, false
	}
	path := strings.ToLower(u.Path)
	title := cleanTitle(p.Title)
	lowerTitle := strings.ToLower(title)

	for _, term := range deniedSitelinkTerms {
		if strings.Contains(path, term) || strings.Contains(lowerTitle, term) {
			return domain.Sitelink{}, false
		}
	}

	kind := domain.SitelinkOther
	bonus := 0
	for _, c := range classification {
		inURL := containsAny(path, c.keywords)
		inTitle := containsAny(lowerTitle, c.keywords)
		if !inURL && !inTitle {
			continue
		}
		kind = c.kind
		if inURL {
			bonus += urlMatchBonus
		}
		if inTitle {
			bonus += titleMatchBonus
		}
		break
	}

	if title == "" {
		title = titleFromPath(path)
	}

	return domain.Sitelink{
		Title:       title,
		URL:         p.URL,
		Description: truncateRunes(p.MetaDescription, maxSitelinkDescription),
		Type:        kind,
		Score:       typePriority[kind] + bonus + depthBonus(path),
	}, true
}

// depthBonus favors shallow pages: /kontakt scores above /a/b/kontakt.
func depthBonus(path string) int {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			depth++
		}
	}
	return max(0, maxDepthBonus-depth+1)
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range titleSeparators {
		if before, _, found := strings.Cut(title, sep); found {
			title = strings.TrimSpace(before)
		}
	}
	return title
}

func titleFromPath(path string) string {
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return ""
	}
	last := []rune(strings.NewReplacer("-", " ", "_", " ").Replace(segs[len(segs)-1]))
	last[0] = unicode.ToUpper(last[0])
	return string(last)
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
