package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// canonicalLayout is the YYYY-MM-DD form every recognized date is rendered in.
const canonicalLayout = "2006-01-02"

// reDate matches the three date shapes we recognize on receipts:
// YYYY-MM-DD, M/D/YYYY (or two-digit year) and D-MMM-YYYY.
var reDate = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}-[A-Za-z]{3}-\d{4})\b`)

// fallbackLayouts are tried, in order, when a token does not fit the numeric
// segment rules.
var fallbackLayouts = []string{
	"2-Jan-2006",
	"02-Jan-2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

// Date returns the first date token in text, normalized. Nil when the text
// contains no recognizable date.
func Date(text string) *string {
	raw := reDate.FindString(text)
	if raw == "" {
		return nil
	}
	normalized := NormalizeDate(raw)
	return &normalized
}

// NormalizeDate converts a date token into YYYY-MM-DD. Ambiguous numeric
// tokens are read month-first (US). Tokens that cannot be parsed come back
// with their separators normalized and nothing else changed.
func NormalizeDate(raw string) string {
	normalized := strings.ReplaceAll(raw, "/", "-")

	parts := strings.Split(normalized, "-")
	if len(parts) == 3 {
		month, day, year := parts[0], parts[1], parts[2]

		// already YYYY-MM-DD
		if len(parts[0]) == 4 && isDigits(parts[0]) {
			return normalized
		}

		if isDigits(month) && isDigits(day) && isDigits(year) {
			switch len(year) {
			case 4:
				return formatSegments(year, month, day)
			case 2:
				yy, _ := strconv.Atoi(year)
				if yy < 30 {
					return formatSegments("20"+year, month, day)
				}
				return formatSegments("19"+year, month, day)
			}
		}
	}

	trimmed := strings.TrimSpace(raw)
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(canonicalLayout)
		}
	}

	return normalized
}

// IsCanonicalDate reports whether s is a valid YYYY-MM-DD calendar date.
func IsCanonicalDate(s string) bool {
	_, err := time.Parse(canonicalLayout, s)
	return err == nil
}

func formatSegments(year, month, day string) string {
	return fmt.Sprintf("%s-%s-%s", year, padTwo(month), padTwo(day))
}

func padTwo(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
