// Package discover scans category listing pages for ad-detail permalinks.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

// Ad permalinks look like /123456-lada-granta.html: a numeric id prefix
// on the last path segment.
var permalinkRe = regexp.MustCompile(`/\d+-[^/]+\.html$`)

// Config controls discovery behavior.
type Config struct {
	// Origin is the site base, e.g. https://berkat.ru.
	Origin string
	// Blacklist holds lowercase keywords whose presence on a candidate
	// detail page marks it as a service/repair offer.
	Blacklist []string
}

// Discoverer extracts candidate detail URLs from listing pages.
type Discoverer struct {
	fetcher advert.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Discoverer.
func New(fetcher advert.Fetcher, cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Links fetches one category listing page and returns distinct absolute
// detail URLs in page order. A fetch failure degrades to an empty result.
func (d *Discoverer) Links(ctx context.Context, categoryPath string) []string {
	pageURL := d.cfg.Origin + "/" + strings.TrimPrefix(categoryPath, "/")
	body, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		d.logger.Warn("listing page fetch failed",
			zap.String("category", categoryPath),
			zap.Error(err),
		)
		return nil
	}
	links, err := ParseLinks(body, d.cfg.Origin)
	if err != nil {
		d.logger.Warn("listing page parse failed",
			zap.String("category", categoryPath),
			zap.Error(err),
		)
		return nil
	}
	return links
}

// ParseLinks extracts ad permalinks from listing-page HTML. Promoted
// placements and image-only anchors are skipped; results are deduplicated
// by exact URL preserving order.
func ParseLinks(html []byte, origin string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find(".board_list_item").Each(func(_ int, item *goquery.Selection) {
		// Promoted placements carry the admin badge and are ads for ads.
		if item.Find(".board_actions_link_admin_top").Length() > 0 {
			return
		}
		item.Find(".board_list_item_title a[href]").Each(func(_ int, a *goquery.Selection) {
			if a.Find("img").Length() > 0 {
				return
			}
			href, _ := a.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" || !permalinkRe.MatchString(href) {
				return
			}
			full := absolutize(href, origin)
			if _, ok := seen[full]; ok {
				return
			}
			seen[full] = struct{}{}
			links = append(links, full)
		})
	})

	return links, nil
}

// FilterServiceOffers runs the secondary keyword pass: each candidate page
// is fetched and dropped when its text matches the blacklist. One
// candidate's fetch failure excludes only that candidate.
func (d *Discoverer) FilterServiceOffers(ctx context.Context, urls []string) []string {
	if len(d.cfg.Blacklist) == 0 {
		return urls
	}
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		body, err := d.fetcher.Fetch(ctx, u)
		if err != nil {
			d.logger.Warn("candidate check failed, excluding",
				zap.String("url", u),
				zap.Error(err),
			)
			continue
		}
		if matchesBlacklist(body, d.cfg.Blacklist) {
			d.logger.Info("candidate excluded by keyword blacklist", zap.String("url", u))
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

func matchesBlacklist(html []byte, blacklist []string) bool {
	text := strings.ToLower(string(html))
	for _, kw := range blacklist {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func absolutize(href, origin string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return origin + "/" + strings.TrimPrefix(href, "/")
}
