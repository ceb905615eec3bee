package extractor

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Meltveit/qrydex/internal/crawler"
)

const (
	largeImageWidth  = 200
	largeImageHeight = 100
)

// FindLogo picks a logo from crawl images: the social preview image, then
// an image whose filename or class mentions "logo", then a favicon, then
// the first large image, then the first image at all.
func FindLogo(images []crawler.Image) string {
	for _, img := range images {
		if img.Social {
			return img.URL
		}
	}
	for _, img := range images {
		if img.Icon {
			continue
		}
		if strings.Contains(strings.ToLower(imageFilename(img.URL)), "logo") ||
			strings.Contains(strings.ToLower(img.Class), "logo") {
			return img.URL
		}
	}
	for _, img := range images {
		if img.Icon {
			return img.URL
		}
	}
	for _, img := range images {
		if img.Width >= largeImageWidth || img.Height >= largeImageHeight {
			return img.URL
		}
	}
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}

func imageFilename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return path.Base(u.Path)
}

// socialHosts maps registrable hosts to platform names.
var socialHosts = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"linkedin.com":  "linkedin",
	"instagram.com": "instagram",
	"twitter.com":   "x",
	"x.com":         "x",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
}

// shareMarkers identify share buttons rather than profile links.
var shareMarkers = []string{"sharer", "/share", "intent/tweet", "shareArticle", "/embed/", "/watch?", "/p/", "/posts/"}

// FindSocialLinks returns the first profile link per platform found in the
// anchors of the given page markups.
func FindSocialLinks(markups []string) map[string]string {
	found := make(map[string]string)
	for _, m := range markups {
		if m == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(m))
		if err != nil {
			continue
		}
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			platform, ok := socialPlatform(href)
			if !ok {
				return
			}
			if _, exists := found[platform]; !exists {
				found[platform] = href
			}
		})
	}
	return found
}

func socialPlatform(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	platform, ok := socialHosts[RegistrableDomain(u.Hostname())]
	if !ok {
		return "", false
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", false
	}
	for _, marker := range shareMarkers {
		if strings.Contains(href, marker) {
			return "", false
		}
	}
	return platform, true
}
