// Package similarity scores how alike two strings are on a 0-100 scale.
package similarity

import fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

// Scorer returns an integer similarity in [0,100].
type Scorer interface {
	Score(a, b string) int
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(a, b string) int

func (f ScorerFunc) Score(a, b string) int { return f(a, b) }

var (
	// TokenSet ignores token order and duplicated tokens.
	TokenSet Scorer = ScorerFunc(func(a, b string) int { return fuzzy.TokenSetRatio(a, b) })
	// Ratio is the plain edit-distance ratio.
	Ratio Scorer = ScorerFunc(fuzzy.Ratio)
)

// Match is the best candidate found by BestMatch.
type Match struct {
	Candidate string
	Score     int
	Index     int
}

// BestMatch returns the highest scoring candidate. Ties go to the earliest
// candidate. ok is false when candidates is empty.
func BestMatch(query string, candidates []string, scorer Scorer) (Match, bool) {
	best := Match{Index: -1, Score: -1}
	for i, c := range candidates {
		if s := scorer.Score(query, c); s > best.Score {
			best = Match{Candidate: c, Score: s, Index: i}
		}
	}
	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}
