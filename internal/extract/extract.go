// Package extract pulls structured advert fields out of detail-page HTML.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

const (
	titleBoilerplate = "Поднять в списке"
	viewsLabel       = "Просмотры: "
	descDelimiter    = "\t\t\t"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`[\t\n]+`)
)

// textRule is one declarative extraction step: a selector, a transform and
// a required flag. Rules are independent and order-insensitive.
type textRule struct {
	field     string
	selector  string
	required  bool
	requireAs error
	transform func(string) string
}

var textRules = []textRule{
	{
		field:    "title",
		selector: "h1",
		transform: func(s string) string {
			s = whitespaceRe.ReplaceAllString(s, "")
			if i := strings.Index(s, titleBoilerplate); i >= 0 {
				s = s[:i] + s[i+len(titleBoilerplate):]
			}
			return strings.TrimSpace(s)
		},
	},
	{
		field:    "description",
		selector: ".board_item_desc",
		transform: func(s string) string {
			if i := strings.Index(s, descDelimiter); i >= 0 {
				s = s[:i]
			}
			return strings.TrimSpace(s)
		},
	},
	{
		field:     "city",
		selector:  ".board_item_city",
		required:  true,
		requireAs: advert.ErrMissingCity,
		transform: strings.TrimSpace,
	},
	{
		field:     "createdAt",
		selector:  ".board_item_date time",
		transform: strings.TrimSpace,
	},
}

// Extractor turns one detail page into a RawAdvert.
type Extractor struct {
	origin string
}

// New builds an Extractor resolving relative image paths against origin.
func New(origin string) *Extractor {
	return &Extractor{origin: origin}
}

// Extract parses the HTML and evaluates every extraction rule. Missing
// optional fields yield zero values; missing city or category is an error.
func (e *Extractor) Extract(html []byte) (advert.RawAdvert, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return advert.RawAdvert{}, fmt.Errorf("parse detail html: %w", err)
	}

	raw := advert.RawAdvert{}
	fields := make(map[string]string, len(textRules))
	for _, r := range textRules {
		val := r.transform(doc.Find(r.selector).First().Text())
		if val == "" && r.required {
			return advert.RawAdvert{}, r.requireAs
		}
		fields[r.field] = val
	}
	raw.Title = fields["title"]
	raw.Description = fields["description"]
	raw.City = fields["city"]
	raw.CreatedAt = fields["createdAt"]

	raw.Category = extractCategory(doc)
	if raw.Category == "" {
		return advert.RawAdvert{}, advert.ErrMissingCategory
	}

	raw.Images = e.extractImages(doc)
	raw.Phone = extractPhone(doc)
	raw.Price, raw.HasPrice = extractPrice(doc)
	raw.Views = extractViews(doc)
	raw.Properties = extractProperties(doc)

	return raw, nil
}

func (e *Extractor) extractImages(doc *goquery.Document) []string {
	gallery := doc.Find(".fotorama img")
	if gallery.Length() == 0 {
		gallery = doc.Find(".board_item_gallery img")
	}

	seen := make(map[string]struct{})
	var images []string
	gallery.Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return
		}
		if !strings.HasPrefix(src, "http") {
			src = e.origin + "/" + strings.TrimPrefix(src, "/")
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})
	return images
}

func extractPhone(doc *goquery.Document) string {
	href, ok := doc.Find(`[href^="tel:"]`).First().Attr("href")
	if !ok {
		return ""
	}
	return strings.TrimPrefix(href, "tel:")
}

func extractPrice(doc *goquery.Document) (int, bool) {
	text := doc.Find(".board_item_price span").First().Text()
	digits := strings.Join(digitsRe.FindAllString(text, -1), "")
	if digits == "" {
		return 0, false
	}
	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return price, true
}

func extractViews(doc *goquery.Document) int {
	text := strings.TrimSpace(doc.Find(".board_item_hits").Text())
	text = strings.TrimPrefix(text, viewsLabel)
	views, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0
	}
	return views
}

func extractCategory(doc *goquery.Document) string {
	// Last breadcrumb entry names the leaf category.
	crumbs := doc.Find(".breadcrumbs a")
	if crumbs.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(crumbs.Last().Text())
}

func extractProperties(doc *goquery.Document) []advert.Property {
	var props []advert.Property
	doc.Find(".content_item_props table tr").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("td.title").Text())
		text := strings.TrimSpace(row.Find("td.value").Text())
		if name == "" || text == "" {
			return
		}
		props = append(props, advert.Property{Name: name, Text: text})
	})
	return props
}
