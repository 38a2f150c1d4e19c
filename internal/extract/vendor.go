package extract

import "strings"

// vendorScanLines is how far down the receipt we look for a vendor name.
const vendorScanLines = 20

// vendorSkipWords mark lines that are page furniture rather than a business name.
var vendorSkipWords = []string{"page", "invoice"}

// Vendor guesses the business name: the first line near the top that is not a
// date, an amount or page furniture.
func Vendor(text string) *string {
	lines := candidateLines(text)
	for i := 0; i < len(lines) && i < vendorScanLines; i++ {
		line := lines[i]
		if reDate.MatchString(line) {
			continue
		}
		if reCurrencyAmount.MatchString(line) || reLooseAmount.MatchString(line) {
			continue
		}
		if containsAny(strings.ToLower(line), vendorSkipWords) {
			continue
		}
		return &line
	}
	return nil
}

// candidateLines splits text into trimmed lines, dropping blank lines and
// one or two character OCR crumbs.
func candidateLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if len(l) > 2 {
			lines = append(lines, l)
		}
	}
	return lines
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
