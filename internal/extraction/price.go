package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRegex is the Glossary's price pattern: a currency symbol immediately before
// or after a decimal number.
var priceRegex = regexp.MustCompile(`[£$€¥₹]\s*\d[\d,.]*|\d[\d,.]*\s*[£$€¥₹]|\d[\d,.]*\s*MAD`)

var currencySymbols = map[string]string{
	"£": "GBP", "$": "USD", "€": "EUR", "¥": "JPY", "₹": "INR",
}

// normalizePrice extracts the first price-looking substring from raw and converts it
// to a float plus an ISO-ish currency code, applying the decimal/thousand-separator
// heuristic: if the rightmost ',' occurs after the rightmost '.', ',' is the decimal
// point and '.' is thousands; if only ',' is present, it's thousands when exactly
// three digits follow it, otherwise decimal; any other case treats '.' as decimal and
// strips ','.
func normalizePrice(raw string) (value float64, currency string, ok bool) {
	match := priceRegex.FindString(raw)
	if match == "" {
		match = raw
	}

	currency = detectCurrency(match)
	numeric := stripNonNumeric(match)
	if numeric == "" {
		return 0, currency, false
	}

	value, ok = parseNumeric(numeric)
	return value, currency, ok
}

func detectCurrency(s string) string {
	for symbol, code := range currencySymbols {
		if strings.Contains(s, symbol) {
			return code
		}
	}
	if strings.Contains(strings.ToUpper(s), "MAD") {
		return "MAD"
	}
	return ""
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseNumeric(s string) (float64, bool) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	var decimalSep byte
	switch {
	case lastComma == -1 && lastDot == -1:
		decimalSep = 0
	case lastDot == -1:
		// only ',' present: thousands separator iff exactly three digits follow it,
		// otherwise it's the decimal point.
		if len(s)-lastComma-1 == 3 {
			decimalSep = 0
		} else {
			decimalSep = ','
		}
	case lastComma > lastDot:
		decimalSep = ','
	default:
		decimalSep = '.'
	}

	var b strings.Builder
	for i, r := range s {
		switch r {
		case ',', '.':
			if byte(r) == decimalSep && i == lastIndexOfSep(s, decimalSep) {
				b.WriteByte('.')
			}
			// else: thousands separator, drop it
		default:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lastIndexOfSep(s string, sep byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return i
		}
	}
	return -1
}
