package monitor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Candidates at or above this value are usually phone numbers or ids
const maxPrice = 100000

// number: digits with optional inner spaces (including no-break spaces) and 1-2 decimals
const numberPattern = `(\d(?:[\d\s\x{00A0}\x{202F}]*\d)?(?:[.,]\d{1,2})?)`

// Applied in order; results are unioned
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(numberPattern + `[\s\x{00A0}\x{202F}]*€`),
	regexp.MustCompile(`€[\s\x{00A0}\x{202F}]*` + numberPattern),
	regexp.MustCompile(`(?i)` + numberPattern + `[\s\x{00A0}\x{202F}]*EUR`),
}

// ExtractKeywords returns the keywords contained in pageText, compared case-insensitively.
// Containment is by substring, so "cena" also matches inside "cenami".
func ExtractKeywords(pageText string, keywords []string) []string {
	text := strings.ToLower(pageText)
	found := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			found = append(found, k)
		}
	}
	return found
}

// ExtractPrices scans raw markup for euro amounts and returns each distinct value once.
// Values come back in discovery order; callers must not assume they are sorted.
func ExtractPrices(rawHTML string) []float64 {
	var prices []float64
	seen := make(map[float64]struct{})

	for _, re := range pricePatterns {
		for _, m := range re.FindAllStringSubmatch(rawHTML, -1) {
			price, ok := parsePrice(m[1])
			if !ok {
				continue
			}
			if _, dup := seen[price]; dup {
				continue
			}
			seen[price] = struct{}{}
			prices = append(prices, price)
		}
	}
	return prices
}

// parsePrice strips whitespace, turns a decimal comma into a point and
// rejects values outside (0, maxPrice).
func parsePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price <= 0 || price >= maxPrice {
		return 0, false
	}
	return price, true
}
