package exclusivity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hetulpatel/arbscan/internal/similarity"
)

// DefaultSimilarityCutoff is the score above which two number-stripped
// outcome names count as the same text.
const DefaultSimilarityCutoff = 85

const monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	bareDateRe   = regexp.MustCompile(`(?i)^` + monthNames + `\.?(?:\s+\d{1,2}(?:st|nd|rd|th)?)?(?:,?\s*\d{4})?$`)
	bareMoneyRe  = regexp.MustCompile(`(?i)^\$[\d,.]+[kmb]?$`)
	bareNumberRe = regexp.MustCompile(`^[\d,.]+%?$`)

	byBeforeRe = regexp.MustCompile(`(?i)\b(?:by|before)\b`)
	temporalRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:by|before|until)\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d`),
		regexp.MustCompile(`(?i)\bq[1-4]\b`),
		regexp.MustCompile(`\b20\d{2}\b`),
	}
	thresholdRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:above|over|more than|greater than)\b`),
		regexp.MustCompile(`(?i)\b(?:below|under|less than)\b`),
		regexp.MustCompile(`(?i)\b(?:at least|minimum)\b`),
		regexp.MustCompile(`[<>]=?\s*\$?\d`),
	}

	numericTokenRe = regexp.MustCompile(`(?i)[$€£]?\d[\d,.]*(?:\s?[kmb]\b)?%?`)
	currencyRe     = regexp.MustCompile(`[$€£%]`)
	spacesRe       = regexp.MustCompile(`\s+`)
)

type allMatch struct {
	name   string
	re     *regexp.Regexp
	reason string
}

func (r allMatch) Name() string { return r.name }

func (r allMatch) Check(names []string) (string, bool) {
	for _, n := range names {
		if !r.re.MatchString(strings.TrimSpace(n)) {
			return "", false
		}
	}
	return r.reason, true
}

// temporal vetoes sets dominated by cumulative time language
// ("by March", "before Q2").
type temporal struct{}

func (temporal) Name() string { return "temporal" }

func (temporal) Check(names []string) (string, bool) {
	timed := countAny(names, temporalRe)
	if timed*2 < len(names) {
		return "", false
	}
	byBefore := countAny(names, []*regexp.Regexp{byBeforeRe})
	if byBefore >= 2 {
		return fmt.Sprintf("nested time windows (%d outcomes with by/before dates)", byBefore), true
	}
	if timed == len(names) {
		return "all outcomes contain dates (nested time windows)", true
	}
	return "", false
}

// threshold vetoes sets dominated by above/below language.
type threshold struct{}

func (threshold) Name() string { return "threshold" }

func (threshold) Check(names []string) (string, bool) {
	n := countAny(names, thresholdRe)
	if n*2 < len(names) {
		return "", false
	}
	return fmt.Sprintf("cumulative thresholds (%d outcomes with above/below language)", n), true
}

// NumericVariants vetoes sets whose names mostly differ only by numbers,
// such as "BTC $100k" and "BTC $120k".
type NumericVariants struct {
	Scorer similarity.Scorer
	Cutoff int
}

func (NumericVariants) Name() string { return "numeric_variants" }

func (r NumericVariants) Check(names []string) (string, bool) {
	stripped := make([]string, len(names))
	numeric := make([]bool, len(names))
	for i, n := range names {
		stripped[i], numeric[i] = StripNumbers(n)
	}

	var pairs, similar int
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			pairs++
			if !numeric[i] && !numeric[j] {
				continue
			}
			a, b := stripped[i], stripped[j]
			switch {
			case a == "" && b == "":
				similar++
			case a != "" && b != "" && r.Scorer.Score(a, b) > r.Cutoff:
				similar++
			}
		}
	}
	if pairs == 0 || similar*2 <= pairs {
		return "", false
	}
	return fmt.Sprintf("outcomes differ only by numbers (%d/%d similar pairs)", similar, pairs), true
}

// StripNumbers lower-cases name and removes numbers with their currency,
// percent and k/m/b decorations. The bool reports whether anything numeric
// was removed.
func StripNumbers(name string) (string, bool) {
	lower := strings.ToLower(name)
	out := numericTokenRe.ReplaceAllString(lower, " ")
	out = currencyRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(spacesRe.ReplaceAllString(out, " "))
	return out, out != strings.TrimSpace(spacesRe.ReplaceAllString(lower, " "))
}

func countAny(names []string, patterns []*regexp.Regexp) int {
	var n int
	for _, name := range names {
		for _, re := range patterns {
			if re.MatchString(name) {
				n++
				break
			}
		}
	}
	return n
}
