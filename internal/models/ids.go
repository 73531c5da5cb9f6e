package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/hetulpatel/arbscan/internal/collectors"
)

// HashStrings returns a SHA256 hash of the provided strings with newline separators.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PairID builds an order-independent id for two venue events.
func PairID(venueA collectors.Venue, idA string, venueB collectors.Venue, idB string) string {
	parts := []string{
		fmt.Sprintf("%s:%s", venueA, idA),
		fmt.Sprintf("%s:%s", venueB, idB),
	}
	sort.Strings(parts)
	return HashStrings(parts...)[:16]
}
