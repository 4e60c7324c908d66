package aigateway

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

var (
	digitsRe = regexp.MustCompile(`\d+`)
	// Sellers often leave the price field empty and write "цена 450000"
	// or "стоимость 450 000" in the description instead.
	descPriceRe = regexp.MustCompile(`(?i)(?:цена|стоимость)\D{0,5}(\d[\d\s]*)`)
)

// resolvePrice picks the final price: the model's answer when usable,
// otherwise the structurally extracted price, otherwise a scan of the
// description text.
func resolvePrice(modelPrice string, raw advert.RawAdvert) int {
	if p := parseDigits(modelPrice); p > 0 {
		return p
	}
	if raw.HasPrice && raw.Price > 0 {
		return raw.Price
	}
	if p, ok := priceFromDescription(raw.Description); ok {
		return p
	}
	if raw.HasPrice {
		return raw.Price
	}
	return 0
}

// priceFromDescription recovers a price mentioned in free text.
func priceFromDescription(desc string) (int, bool) {
	m := descPriceRe.FindStringSubmatch(desc)
	if m == nil {
		return 0, false
	}
	p := parseDigits(m[1])
	if p <= 0 {
		return 0, false
	}
	return p, true
}

func parseDigits(s string) int {
	digits := strings.Join(digitsRe.FindAllString(s, -1), "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
