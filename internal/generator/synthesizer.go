// Package generator fabricates synthetic transactions and card credentials.
package generator

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"simbank/internal/core"
)

// DefaultRefundProbability is the share of generated amounts flipped negative.
const DefaultRefundProbability = 0.12

const (
	manualJitterMax       = 3 * time.Second
	scheduledMinutesRange = 60
	scheduledSecondsRange = 60
)

var ErrInvalidProbability = errors.New("refund probability must be within [0, 1]")

// Pick is a catalog draw: one category and one of its merchants.
type Pick struct {
	Category string
	Template core.MerchantTemplate
}

// Synthesizer builds transactions. It has no side effects: persisting the
// result is the caller's job.
type Synthesizer struct {
	catalog    core.Catalog
	days       core.DayResolver
	rnd        Rand
	refundProb float64
	newID      func() (string, error)
}

type Option func(*Synthesizer)

// WithRefundProbability overrides DefaultRefundProbability.
func WithRefundProbability(p float64) Option {
	return func(s *Synthesizer) { s.refundProb = p }
}

// WithIDFunc replaces the id source.
func WithIDFunc(fn func() (string, error)) Option {
	return func(s *Synthesizer) { s.newID = fn }
}

func NewSynthesizer(catalog core.Catalog, days core.DayResolver, rnd Rand, opts ...Option) (*Synthesizer, error) {
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if rnd == nil {
		rnd = NewTimeSeededRand()
	}
	s := &Synthesizer{
		catalog:    catalog,
		days:       days,
		rnd:        rnd,
		refundProb: DefaultRefundProbability,
		newID:      NewTransactionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refundProb < 0 || s.refundProb > 1 {
		return nil, ErrInvalidProbability
	}
	return s, nil
}

// NewTransactionID returns "sim_" followed by a UUIDv7: a millisecond
// timestamp prefix and a random suffix.
func NewTransactionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return "sim_" + id.String(), nil
}

// NewID draws a fresh transaction id, used to retry after a collision.
func (s *Synthesizer) NewID() (string, error) {
	return s.newID()
}

// Pick draws a category uniformly, then a merchant uniformly within it.
func (s *Synthesizer) Pick() Pick {
	cat := s.catalog.CategoryAt(s.rnd.IntN(s.catalog.Len()))
	return Pick{
		Category: cat.Name,
		Template: cat.Merchants[s.rnd.IntN(len(cat.Merchants))],
	}
}

// Next picks from the catalog and synthesizes one transaction.
func (s *Synthesizer) Next(source core.Source, now time.Time) (core.Transaction, error) {
	return s.Synthesize(s.Pick(), source, now)
}

// Synthesize builds a transaction for pick. Manual transactions are stamped
// just before now; scheduled ones land anywhere in the preceding hour.
func (s *Synthesizer) Synthesize(pick Pick, source core.Source, now time.Time) (core.Transaction, error) {
	if !source.IsValid() {
		return core.Transaction{}, core.ErrInvalidSource
	}
	id, err := s.newID()
	if err != nil {
		return core.Transaction{}, err
	}

	amount := s.amount(pick.Template)
	ts := now.Add(-s.jitter(source))

	return core.Transaction{
		ID:        id,
		Merchant:  pick.Template.Merchant,
		Category:  pick.Category,
		Amount:    amount,
		Type:      core.TypeForAmount(amount),
		Source:    source,
		Date:      s.days.Key(ts),
		Timestamp: ts,
	}, nil
}

// amount draws uniformly from [min, max], flips the sign with the refund
// probability and rounds to cents.
func (s *Synthesizer) amount(t core.MerchantTemplate) decimal.Decimal {
	span := t.Max.Sub(t.Min)
	v := t.Min.Add(span.Mul(decimal.NewFromFloat(s.rnd.Float64()))).Round(2)
	if v.GreaterThan(t.Max) {
		v = t.Max
	}
	if s.rnd.Float64() < s.refundProb {
		v = v.Neg()
	}
	return v
}

func (s *Synthesizer) jitter(source core.Source) time.Duration {
	if source == core.SourceManual {
		return time.Duration(s.rnd.IntN(int(manualJitterMax/time.Millisecond))) * time.Millisecond
	}
	minutes := s.rnd.IntN(scheduledMinutesRange)
	seconds := s.rnd.IntN(scheduledSecondsRange)
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
}
