package monitor

// Evaluate decides whether a page satisfies a target's criteria.
// All keywords must be present; when a price bound is set, the first
// extracted price inside the bounds is taken as evidence.
func Evaluate(target *Target, pageText, rawHTML string) (MatchEvidence, bool) {
	evidence := MatchEvidence{
		MatchedKeywords: ExtractKeywords(pageText, target.Keywords),
	}
	keywordsOk := len(evidence.MatchedKeywords) == len(target.Keywords)

	priceOk := true
	if target.HasPriceBounds() {
		priceOk = false
		for _, price := range ExtractPrices(rawHTML) {
			if inRange(price, target.PriceMin, target.PriceMax) {
				p := price
				evidence.MatchedPrice = &p
				priceOk = true
				break
			}
		}
	}

	return evidence, keywordsOk && priceOk
}

func inRange(price float64, min, max *float64) bool {
	if min != nil && price < *min {
		return false
	}
	if max != nil && price > *max {
		return false
	}
	return true
}
