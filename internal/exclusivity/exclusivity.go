// Package exclusivity decides whether a market's outcomes partition the
// event space, which is what makes buying every outcome a surebet.
package exclusivity

import (
	"fmt"

	"github.com/hetulpatel/arbscan/internal/similarity"
)

// Verdict is the classifier's decision for one outcome set.
type Verdict struct {
	Exclusive bool
	Rule      string
	Reason    string
}

// Rule flags an outcome set as overlapping. Rules only ever veto; a set no
// rule vetoes is exclusive.
type Rule interface {
	Name() string
	Check(names []string) (reason string, overlapping bool)
}

// Classifier applies rules in order and stops at the first veto.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier with the given rules, or DefaultRules
// when none are passed.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules(similarity.Ratio, DefaultSimilarityCutoff)
	}
	return &Classifier{rules: rules}
}

// DefaultRules is the standard precedence order.
func DefaultRules(scorer similarity.Scorer, cutoff int) []Rule {
	return []Rule{
		allMatch{name: "bare_dates", re: bareDateRe, reason: "all outcomes are dates (nested time windows)"},
		allMatch{name: "bare_money", re: bareMoneyRe, reason: "all outcomes are monetary thresholds (cumulative)"},
		allMatch{name: "bare_numbers", re: bareNumberRe, reason: "all outcomes are numeric thresholds (cumulative)"},
		temporal{},
		threshold{},
		NumericVariants{Scorer: scorer, Cutoff: cutoff},
	}
}

// Classify returns the verdict for an ordered set of outcome names.
func (c *Classifier) Classify(names []string) Verdict {
	if len(names) < 2 {
		return Verdict{Rule: "too_few", Reason: fmt.Sprintf("need at least 2 outcomes, have %d", len(names))}
	}
	for _, r := range c.rules {
		if reason, overlapping := r.Check(names); overlapping {
			return Verdict{Rule: r.Name(), Reason: reason}
		}
	}
	return Verdict{Exclusive: true, Rule: "exclusive", Reason: "outcomes look mutually exclusive"}
}
