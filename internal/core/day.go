package core

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultTimezone is the civil timezone quota days are bucketed in.
const DefaultTimezone = "America/Los_Angeles"

// DayResolver projects instants onto civil days in a fixed timezone.
type DayResolver struct {
	loc *time.Location
}

// NewDayResolver loads the IANA zone tz. An empty name selects DefaultTimezone.
func NewDayResolver(tz string) (DayResolver, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DayResolver{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return DayResolver{loc: loc}, nil
}

// NewDayResolverIn wraps an already loaded location.
func NewDayResolverIn(loc *time.Location) DayResolver {
	if loc == nil {
		loc = time.UTC
	}
	return DayResolver{loc: loc}
}

// Key returns the YYYY-MM-DD day-key of t.
func (d DayResolver) Key(t time.Time) string {
	return DayKey(t, d.Location())
}

// Location returns the resolver's timezone (UTC for the zero value).
func (d DayResolver) Location() *time.Location {
	if d.loc == nil {
		return time.UTC
	}
	return d.loc
}

// DayKey maps an instant to its civil date in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return civil.DateOf(t.In(loc)).String()
}
