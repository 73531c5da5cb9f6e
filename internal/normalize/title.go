package normalize

import (
	"regexp"
	"strings"
)

var (
	punctReplacer = strings.NewReplacer(
		"\u2013", "-",
		"\u2014", "-",
		"\u2012", "-",
		"\u2015", "-",
		"\u2212", "-",
		"\u00a0", " ",
		"|", " ",
		"\u2022", " ",
		"\u00b7", " ",
	)
	monthDayYearRe = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},\s+\d{4}\b`)
	isoDateRe      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	spaceRe        = regexp.MustCompile(`\s+`)

	// Venues spell the same asset differently. Applied after lower-casing.
	tickerAliases = []struct {
		re     *regexp.Regexp
		ticker string
	}{
		{regexp.MustCompile(`\bbitcoin\b`), "btc"},
		{regexp.MustCompile(`\bethereum\b|\bether\b`), "eth"},
		{regexp.MustCompile(`\bu\.?s\.? dollars?\b`), "usd"},
	}
)

// Title returns the canonical form of a market title used for matching.
func Title(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	t = punctReplacer.Replace(t)
	t = monthDayYearRe.ReplaceAllString(t, "")
	t = isoDateRe.ReplaceAllString(t, "")
	t = strings.ToLower(spaceRe.ReplaceAllString(t, " "))
	for _, a := range tickerAliases {
		t = a.re.ReplaceAllString(t, a.ticker)
	}
	return strings.TrimSpace(t)
}

// Price converts a cent-denominated price to the unit scale.
func Price(p float64) float64 {
	if p > 1 {
		return p / 100
	}
	return p
}
