package collectors

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount decodes a venue number that may arrive quoted, bare, empty or null.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	a.Decimal = d
	return nil
}

// Float returns the amount as a float64.
func (a Amount) Float() float64 {
	return a.InexactFloat64()
}
