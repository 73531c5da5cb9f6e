package normalize

import (
	"encoding/json"
	"strings"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/models"
)

// DropReason explains why a raw record was filtered out.
type DropReason string

const (
	DropMissingID       DropReason = "missing_id"
	DropMissingTitle    DropReason = "missing_title"
	DropMalformedTokens DropReason = "malformed_tokens"
	DropTooFewOutcomes  DropReason = "too_few_outcomes"
)

// Stats counts kept and dropped records for one venue listing.
type Stats struct {
	Kept    int
	Dropped map[DropReason]int
}

// Markets normalizes a venue listing, silently dropping unusable records.
func Markets(raws []collectors.RawMarket) ([]models.Market, Stats) {
	stats := Stats{Dropped: make(map[DropReason]int)}
	out := make([]models.Market, 0, len(raws))
	for _, raw := range raws {
		m, reason := Market(raw)
		if reason != "" {
			stats.Dropped[reason]++
			continue
		}
		stats.Kept++
		out = append(out, m)
	}
	return out, stats
}

// Market converts one raw record. A non-empty DropReason means the record
// must be skipped.
func Market(raw collectors.RawMarket) (models.Market, DropReason) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return models.Market{}, DropMissingID
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return models.Market{}, DropMissingTitle
	}

	m := models.Market{
		Venue:           raw.Venue,
		EventID:         id,
		Title:           title,
		NormalizedTitle: Title(title),
		VolumeUSD:       raw.VolumeUSD,
	}
	if !raw.Deadline.IsZero() {
		d := raw.Deadline.UTC()
		m.Deadline = &d
	}

	switch {
	case raw.YesToken != "" || raw.NoToken != "":
		m.Kind = models.KindBinary
		m.Outcomes = appendOutcome(nil, "Yes", raw.YesToken)
		m.Outcomes = appendOutcome(m.Outcomes, "No", raw.NoToken)
	case len(raw.Children) > 0:
		m.Kind = models.KindMultiOutcome
		for _, child := range raw.Children {
			token := strings.TrimSpace(child.YesToken)
			if token == "" {
				ids, err := parseStringArray(child.TokenIDs)
				if err != nil || len(ids) == 0 {
					continue
				}
				token = strings.TrimSpace(ids[0])
			}
			m.Outcomes = appendOutcome(m.Outcomes, child.Title, token)
		}
	default:
		names, err := parseStringArray(raw.OutcomeNames)
		if err != nil {
			return models.Market{}, DropMalformedTokens
		}
		tokens, err := parseStringArray(raw.TokenIDs)
		if err != nil {
			return models.Market{}, DropMalformedTokens
		}
		n := min(len(names), len(tokens))
		for i := 0; i < n; i++ {
			m.Outcomes = appendOutcome(m.Outcomes, names[i], tokens[i])
		}
		m.Kind = models.KindMultiOutcome
		if yes, no, ok := yesNoPair(m.Outcomes); ok {
			m.Kind = models.KindBinary
			m.Outcomes = []models.Outcome{
				{Name: "Yes", TokenID: yes},
				{Name: "No", TokenID: no},
			}
		}
	}

	if len(m.Outcomes) < 2 {
		return models.Market{}, DropTooFewOutcomes
	}
	return m, ""
}

// appendOutcome skips blank names/tokens and keeps the first token for a
// repeated name.
func appendOutcome(outcomes []models.Outcome, name, token string) []models.Outcome {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)
	if name == "" || token == "" {
		return outcomes
	}
	for _, o := range outcomes {
		if o.Name == name {
			return outcomes
		}
	}
	return append(outcomes, models.Outcome{Name: name, TokenID: token})
}

func yesNoPair(outcomes []models.Outcome) (yes, no string, ok bool) {
	if len(outcomes) != 2 {
		return "", "", false
	}
	for _, o := range outcomes {
		switch strings.ToLower(o.Name) {
		case "yes":
			yes = o.TokenID
		case "no":
			no = o.TokenID
		}
	}
	return yes, no, yes != "" && no != ""
}

func parseStringArray(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
