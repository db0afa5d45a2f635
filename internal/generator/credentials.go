package generator

import (
	"fmt"
	"strings"
	"time"

	"simbank/internal/core"
)

const (
	accountNumberDigits = 16
	minExpiryYears      = 2
	expiryYearsSpread   = 4 // 2..5 years out
)

// NewCredentials issues a random account number, CVV and an MM/YY expiry
// between two and five years after now.
func NewCredentials(rnd Rand, now time.Time) core.Credentials {
	var b strings.Builder
	b.Grow(accountNumberDigits)
	for i := 0; i < accountNumberDigits; i++ {
		b.WriteByte(byte('0' + rnd.IntN(10)))
	}

	year := now.Year() + minExpiryYears + rnd.IntN(expiryYearsSpread)
	month := 1 + rnd.IntN(12)

	return core.Credentials{
		Number: b.String(),
		CVV:    fmt.Sprintf("%03d", rnd.IntN(1000)),
		Expiry: fmt.Sprintf("%02d/%02d", month, year%100),
	}
}
