package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// looseAmountLimit bounds the loose strategy so reference numbers, years and
// phone digits misread as decimals are not taken for a total.
const looseAmountLimit = 10000

var (
	reKeywordAmount = regexp.MustCompile(`(?i)(?:grand\s+total|net\s+total|sub[\s-]?total|total|amount|sum|balance)[\s:$£€]*(\d{1,3}(?:,?\d{3})*(?:\.\d{1,2})?)`)

	reCurrencyAmount = regexp.MustCompile(`[$£€]\s*(\d{1,3}(?:,?\d{3})*\.\d{2})|(\d{1,3}(?:,?\d{3})*\.\d{2})\s*(?:USD|CAD|EUR|GBP|AUD|NZD|CHF|JPY|INR|MXN)\b`)

	reLooseAmount = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})*\.\d{2})`)
)

// amountStrategy yields the largest plausible amount it can find, or false.
type amountStrategy struct {
	name string
	find func(text string) (float64, bool)
}

// amountStrategies run in priority order; the first that yields a value wins
// and the rest are never consulted.
var amountStrategies = []amountStrategy{
	{name: "keyword", find: keywordAmount},
	{name: "currency", find: currencyAmount},
	{name: "loose", find: looseAmount},
}

// Amount returns the receipt total rendered with two decimals, or nil.
func Amount(text string) *string {
	value, _, ok := amountWithStrategy(text)
	if !ok {
		return nil
	}
	formatted := FormatAmount(value)
	return &formatted
}

// FormatAmount renders a value with exactly two fraction digits.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func amountWithStrategy(text string) (float64, string, bool) {
	for _, s := range amountStrategies {
		if v, ok := s.find(text); ok {
			return v, s.name, true
		}
	}
	return 0, "", false
}

func keywordAmount(text string) (float64, bool) {
	return maxMatch(text, reKeywordAmount, func(v float64) bool { return v > 0 })
}

func currencyAmount(text string) (float64, bool) {
	return maxMatch(text, reCurrencyAmount, func(v float64) bool { return v > 0 })
}

func looseAmount(text string) (float64, bool) {
	return maxMatch(text, reLooseAmount, func(v float64) bool { return v > 0 && v < looseAmountLimit })
}

// maxMatch collects every standalone capture of re in text that passes
// accept and returns the largest.
func maxMatch(text string, re *regexp.Regexp, accept func(float64) bool) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end, ok := firstGroup(loc)
		if !ok || !standalone(text, start, end) {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(text[start:end], ",", ""), 64)
		if err != nil || !accept(v) {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// firstGroup returns the bounds of the first participating capture group.
func firstGroup(loc []int) (int, int, bool) {
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			return loc[i], loc[i+1], true
		}
	}
	return 0, 0, false
}

// standalone rejects numbers that are only a slice of a longer digit run,
// e.g. "234.56" inside "1234.56" or "202403" inside "20240305".
func standalone(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) {
		return false
	}
	if end < len(text) && isDigit(text[end]) {
		return false
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
