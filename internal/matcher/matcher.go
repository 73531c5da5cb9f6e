package matcher

import (
	"github.com/hetulpatel/arbscan/internal/models"
	"github.com/hetulpatel/arbscan/internal/similarity"
)

// DefaultThreshold is the minimum token-set score for an event match.
const DefaultThreshold = 85

type Config struct {
	Threshold int
	Scorer    similarity.Scorer
	Logger    *Logger
}

// Matcher pairs venue A markets with venue B markets by normalized title.
type Matcher struct {
	threshold int
	scorer    similarity.Scorer
	logger    *Logger
}

func New(cfg Config) *Matcher {
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = similarity.TokenSet
	}
	return &Matcher{threshold: threshold, scorer: scorer, logger: cfg.Logger}
}

// Match walks venue A in order and gives each market the best scoring venue
// B market that is still unmatched. Each market appears in at most one pair.
func (m *Matcher) Match(a, b []models.Market) []models.MatchedPair {
	available := make([]int, len(b))
	for i := range b {
		available[i] = i
	}

	var pairs []models.MatchedPair
	titles := make([]string, 0, len(b))
	for _, left := range a {
		if len(available) == 0 {
			break
		}
		if left.NormalizedTitle == "" {
			continue
		}
		titles = titles[:0]
		for _, idx := range available {
			titles = append(titles, b[idx].NormalizedTitle)
		}
		best, ok := similarity.BestMatch(left.NormalizedTitle, titles, m.scorer)
		if !ok || best.Score < m.threshold {
			continue
		}

		right := b[available[best.Index]]
		available = append(available[:best.Index], available[best.Index+1:]...)
		pair := models.MatchedPair{
			A:          left,
			B:          right,
			MatchScore: best.Score,
			MatchKind:  left.Kind,
		}
		pairs = append(pairs, pair)
		m.logger.LogMatch(pair, m.threshold)
	}
	return pairs
}
