package generator

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"simbank/internal/core"
)

func newTestSynth(t *testing.T, opts ...Option) *Synthesizer {
	t.Helper()
	days, err := core.NewDayResolver("America/Los_Angeles")
	if err != nil {
		t.Fatalf("day resolver: %v", err)
	}
	s, err := NewSynthesizer(core.DefaultCatalog(), days, NewRand(42), opts...)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

func TestAmountWithinTemplateRange(t *testing.T) {
	s := newTestSynth(t)
	for i := 0; i < 10000; i++ {
		p := s.Pick()
		v := s.amount(p.Template).Abs()
		if v.LessThan(p.Template.Min) || v.GreaterThan(p.Template.Max) {
			t.Fatalf("%s: %s outside [%s, %s]", p.Template.Merchant, v, p.Template.Min, p.Template.Max)
		}
		if !v.Equal(v.Round(2)) {
			t.Fatalf("amount %s not rounded to cents", v)
		}
	}
}

func TestRefundRateConverges(t *testing.T) {
	s := newTestSynth(t)
	const trials = 10000
	refunds := 0
	for i := 0; i < trials; i++ {
		tx, err := s.Next(core.SourceScheduled, time.Now())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tx.Type == core.TypeRefund {
			refunds++
		}
	}
	rate := float64(refunds) / trials
	if math.Abs(rate-DefaultRefundProbability) > 0.015 {
		t.Fatalf("refund rate %.4f too far from %.2f", rate, DefaultRefundProbability)
	}
}

func TestRefundProbabilityExtremes(t *testing.T) {
	never := newTestSynth(t, WithRefundProbability(0))
	always := newTestSynth(t, WithRefundProbability(1))
	for i := 0; i < 500; i++ {
		if tx, _ := never.Next(core.SourceManual, time.Now()); tx.Type != core.TypeExpense {
			t.Fatalf("probability 0 produced %s", tx.Amount)
		}
		if tx, _ := always.Next(core.SourceManual, time.Now()); tx.Type != core.TypeRefund {
			t.Fatalf("probability 1 produced %s", tx.Amount)
		}
	}
}

func TestInvalidRefundProbability(t *testing.T) {
	days, _ := core.NewDayResolver("")
	if _, err := NewSynthesizer(core.DefaultCatalog(), days, NewRand(1), WithRefundProbability(1.5)); !errors.Is(err, ErrInvalidProbability) {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
}

func TestTimestampPolicy(t *testing.T) {
	s := newTestSynth(t)
	now := time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)

	for i := 0; i < 2000; i++ {
		manual, err := s.Next(core.SourceManual, now)
		if err != nil {
			t.Fatalf("manual: %v", err)
		}
		if d := now.Sub(manual.Timestamp); d < 0 || d >= 3*time.Second {
			t.Fatalf("manual jitter %v out of range", d)
		}

		scheduled, err := s.Next(core.SourceScheduled, now)
		if err != nil {
			t.Fatalf("scheduled: %v", err)
		}
		if d := now.Sub(scheduled.Timestamp); d < 0 || d >= time.Hour+time.Minute {
			t.Fatalf("scheduled jitter %v out of range", d)
		}
	}
}

func TestSynthesizedTransactionIsConsistent(t *testing.T) {
	s := newTestSynth(t)
	days, _ := core.NewDayResolver("America/Los_Angeles")
	for i := 0; i < 500; i++ {
		tx, err := s.Next(core.SourceScheduled, time.Now())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if err := tx.Validate(); err != nil {
			t.Fatalf("invalid transaction %+v: %v", tx, err)
		}
		if tx.Date != days.Key(tx.Timestamp) {
			t.Fatalf("date %q disagrees with timestamp %v", tx.Date, tx.Timestamp)
		}
		if !strings.HasPrefix(tx.ID, "sim_") {
			t.Fatalf("unexpected id %q", tx.ID)
		}
		if s.catalog.Templates(tx.Category) == nil {
			t.Fatalf("unknown category %q", tx.Category)
		}
	}
}

func TestSynthesizeUsesPick(t *testing.T) {
	s := newTestSynth(t, WithRefundProbability(0))
	pick := Pick{Category: "Test", Template: core.MerchantTemplate{
		Merchant: "Only Shop",
		Min:      decimal.NewFromInt(10),
		Max:      decimal.NewFromInt(11),
	}}
	tx, err := s.Synthesize(pick, core.SourceManual, time.Now())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if tx.Merchant != "Only Shop" || tx.Category != "Test" {
		t.Fatalf("pick not honoured: %+v", tx)
	}
	if _, err := s.Synthesize(pick, "auto", time.Now()); !errors.Is(err, core.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestSeededRandIsReproducible(t *testing.T) {
	a, b := NewRand(7), NewRand(7)
	for i := 0; i < 100; i++ {
		if a.IntN(1000) != b.IntN(1000) || a.Float64() != b.Float64() {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestTransactionIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id, err := NewTransactionID()
		if err != nil {
			t.Fatalf("NewTransactionID: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
