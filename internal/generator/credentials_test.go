package generator

import (
	"regexp"
	"strconv"
	"testing"
	"time"
)

var (
	numberRe = regexp.MustCompile(`^\d{16}$`)
	cvvRe    = regexp.MustCompile(`^\d{3}$`)
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

func TestNewCredentialsFormat(t *testing.T) {
	rnd := NewRand(3)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		c := NewCredentials(rnd, now)
		if !numberRe.MatchString(c.Number) {
			t.Fatalf("bad number %q", c.Number)
		}
		if !cvvRe.MatchString(c.CVV) {
			t.Fatalf("bad cvv %q", c.CVV)
		}
		if !expiryRe.MatchString(c.Expiry) {
			t.Fatalf("bad expiry %q", c.Expiry)
		}
		yy, _ := strconv.Atoi(c.Expiry[3:])
		if yy < 27 || yy > 30 {
			t.Fatalf("expiry year %d not 2-5 years out", yy)
		}
	}
}
