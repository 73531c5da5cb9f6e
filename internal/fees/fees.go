// Package fees models venue taker fees as a fraction of a leg's notional.
package fees

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Model returns the fee, as a fraction of notional, for buying at price
// with the given USDC notional.
type Model interface {
	Name() string
	Fraction(price, notional float64) float64
}

// Zero is a fee-free venue.
type Zero struct{}

func (Zero) Name() string                   { return "zero" }
func (Zero) Fraction(_, _ float64) float64 { return 0 }

// Topic charges rate*p*(1-p) of notional with an absolute minimum fee in USD.
type Topic struct {
	Rate      float64
	MinFeeUSD float64
}

func (m Topic) Name() string {
	return fmt.Sprintf("topic:%g:%g", m.Rate, m.MinFeeUSD)
}

func (m Topic) Fraction(price, notional float64) float64 {
	if notional <= 0 {
		return 0
	}
	fee := math.Max(notional*m.Rate*price*(1-price), m.MinFeeUSD)
	return fee / notional
}

// Kalshi charges rate*contracts*p*(1-p), rounded up to the next cent.
type Kalshi struct {
	Rate float64
}

func (m Kalshi) Name() string {
	return fmt.Sprintf("kalshi:%g", m.Rate)
}

func (m Kalshi) Fraction(price, notional float64) float64 {
	if notional <= 0 || price <= 0 {
		return 0
	}
	contracts := notional / price
	raw := m.Rate * contracts * price * (1 - price)
	fee := math.Ceil(raw*100-1e-9) / 100
	return fee / notional
}

// Flat charges a fixed fraction regardless of price or size.
type Flat struct {
	Rate float64
}

func (m Flat) Name() string {
	return fmt.Sprintf("flat:%g", m.Rate)
}

func (m Flat) Fraction(_, _ float64) float64 { return m.Rate }

const (
	DefaultTopicRate   = 0.08
	DefaultTopicMinFee = 0.50
	DefaultKalshiRate  = 0.07
)

// Parse builds a Model from its config form:
//
//	zero
//	topic[:rate[:min_fee]]
//	kalshi[:rate]
//	flat:fraction
func Parse(spec string) (Model, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), ":")
	args := make([]float64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("fee model %q: bad argument %q", spec, p)
		}
		args = append(args, v)
	}
	arg := func(i int, def float64) float64 {
		if i < len(args) {
			return args[i]
		}
		return def
	}

	switch parts[0] {
	case "", "zero", "none":
		if len(args) > 0 {
			return nil, fmt.Errorf("fee model %q takes no arguments", spec)
		}
		return Zero{}, nil
	case "topic":
		if len(args) > 2 {
			return nil, fmt.Errorf("fee model %q: too many arguments", spec)
		}
		return Topic{Rate: arg(0, DefaultTopicRate), MinFeeUSD: arg(1, DefaultTopicMinFee)}, nil
	case "kalshi":
		if len(args) > 1 {
			return nil, fmt.Errorf("fee model %q: too many arguments", spec)
		}
		return Kalshi{Rate: arg(0, DefaultKalshiRate)}, nil
	case "flat":
		if len(args) != 1 || args[0] >= 1 {
			return nil, fmt.Errorf("fee model %q: want flat:<fraction below 1>", spec)
		}
		return Flat{Rate: args[0]}, nil
	default:
		return nil, fmt.Errorf("unknown fee model %q", spec)
	}
}
