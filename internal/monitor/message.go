package monitor

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// Alert is the rendered content of one fired alert
type Alert struct {
	Subject   string
	HTMLBody  string
	PushTitle string
	PushBody  string
}

// FormatPrice renders a price without float noise, e.g. 49.9 -> "49.9", 50 -> "50"
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).Round(2).String()
}

// BuildAlert renders the email and push content for a fired target
func BuildAlert(target *Target, evidence MatchEvidence) Alert {
	keywords := strings.Join(target.Keywords, ", ")

	priceSuffix := ""
	if evidence.MatchedPrice != nil {
		priceSuffix = " for " + FormatPrice(*evidence.MatchedPrice) + " €"
	}

	var body strings.Builder
	body.WriteString("<h1>Web Monitor: match found</h1>\n")
	fmt.Fprintf(&body, "<p><strong>Page:</strong> %s</p>\n", html.EscapeString(target.URL))
	fmt.Fprintf(&body, "<p><strong>Keywords:</strong> %s</p>\n", html.EscapeString(keywords))
	if evidence.MatchedPrice != nil {
		fmt.Fprintf(&body, "<p><strong>Price:</strong> %s €</p>\n", FormatPrice(*evidence.MatchedPrice))
	}
	fmt.Fprintf(&body, "<p><a href=\"%s\">Open page</a></p>\n", html.EscapeString(target.URL))

	return Alert{
		Subject:   "Found: " + keywords + priceSuffix,
		HTMLBody:  body.String(),
		PushTitle: "Found" + priceSuffix,
		PushBody:  keywords + " on " + target.URL,
	}
}

// statusMessage is the human readable status stored after a check
func statusMessage(matched bool, evidence MatchEvidence) string {
	if !matched {
		return "not found"
	}
	if evidence.MatchedPrice != nil {
		return "found for " + FormatPrice(*evidence.MatchedPrice) + " €"
	}
	return "found"
}
