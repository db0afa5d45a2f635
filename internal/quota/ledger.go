// Package quota decides how many synthetic transactions an account may receive
// on a given day, for the scheduler and for manual ticks.
package quota

import (
	"context"
	"errors"
	"fmt"

	"simbank/internal/core"
	"simbank/internal/generator"
	"simbank/internal/store"
)

const (
	DefaultMinScheduled = 3
	DefaultMaxScheduled = 5
	DefaultManualCap    = 5
)

type Config struct {
	MinScheduled int // inclusive lower bound of the daily scheduled target
	MaxScheduled int // inclusive upper bound
	ManualCap    int
}

func DefaultConfig() Config {
	return Config{
		MinScheduled: DefaultMinScheduled,
		MaxScheduled: DefaultMaxScheduled,
		ManualCap:    DefaultManualCap,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MinScheduled < 0 {
		errs = append(errs, fmt.Errorf("min scheduled must be >= 0, got %d", c.MinScheduled))
	}
	if c.MaxScheduled < c.MinScheduled {
		errs = append(errs, fmt.Errorf("max scheduled (%d) must be >= min scheduled (%d)", c.MaxScheduled, c.MinScheduled))
	}
	if c.ManualCap < 0 {
		errs = append(errs, fmt.Errorf("manual cap must be >= 0, got %d", c.ManualCap))
	}
	return errors.Join(errs...)
}

// ManualResult is the outcome of a manual consume. Used and Cap reflect the
// record after the call whether or not it was allowed.
type ManualResult struct {
	Allowed bool
	Used    int
	Cap     int
}

func (r ManualResult) Remaining() int {
	if r.Used >= r.Cap {
		return 0
	}
	return r.Cap - r.Used
}

// Ledger applies the daily limits on top of a store.QuotaStore.
type Ledger struct {
	store store.QuotaStore
	cfg   Config
	rnd   generator.Rand
}

func NewLedger(qs store.QuotaStore, cfg Config, rnd generator.Rand) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quota config: %w", err)
	}
	return &Ledger{store: qs, cfg: cfg, rnd: rnd}, nil
}

func (l *Ledger) Config() Config { return l.cfg }

// rollTarget draws uniformly from [MinScheduled, MaxScheduled]. The store only
// uses it when the day record does not exist yet, so each day is rolled once.
func (l *Ledger) rollTarget() int {
	return l.cfg.MinScheduled + l.rnd.IntN(l.cfg.MaxScheduled-l.cfg.MinScheduled+1)
}

// ConsumeScheduled reserves one scheduled slot for ref on day. A false result
// means the day's target has been reached.
func (l *Ledger) ConsumeScheduled(ctx context.Context, ref core.AccountRef, day string) (bool, error) {
	_, ok, err := l.store.ConsumeScheduled(ctx, ref, day, l.rollTarget())
	if err != nil {
		return false, fmt.Errorf("consume scheduled quota for %s on %s: %w", ref.Key(), day, err)
	}
	return ok, nil
}

// ConsumeManual reserves one manual slot. Refusal is reported in the result,
// not as an error.
func (l *Ledger) ConsumeManual(ctx context.Context, ref core.AccountRef, day string) (ManualResult, error) {
	q, ok, err := l.store.ConsumeManual(ctx, ref, day, l.cfg.ManualCap)
	if err != nil {
		return ManualResult{}, fmt.Errorf("consume manual quota for %s on %s: %w", ref.Key(), day, err)
	}
	return ManualResult{Allowed: ok, Used: q.Used, Cap: q.Cap}, nil
}

// ReleaseScheduled gives back a slot whose transaction could not be persisted.
func (l *Ledger) ReleaseScheduled(ctx context.Context, ref core.AccountRef, day string) error {
	if err := l.store.ReleaseScheduled(ctx, ref, day); err != nil {
		return fmt.Errorf("release scheduled quota for %s on %s: %w", ref.Key(), day, err)
	}
	return nil
}

func (l *Ledger) ReleaseManual(ctx context.Context, ref core.AccountRef, day string) error {
	if err := l.store.ReleaseManual(ctx, ref, day); err != nil {
		return fmt.Errorf("release manual quota for %s on %s: %w", ref.Key(), day, err)
	}
	return nil
}

// ManualUsage reports the manual record for day without consuming. A missing
// record reads as zero used against the configured cap.
func (l *Ledger) ManualUsage(ctx context.Context, ref core.AccountRef, day string) (ManualResult, error) {
	q, err := l.store.GetManual(ctx, ref, day)
	if errors.Is(err, store.ErrNotFound) {
		return ManualResult{Used: 0, Cap: l.cfg.ManualCap}, nil
	}
	if err != nil {
		return ManualResult{}, fmt.Errorf("get manual quota for %s on %s: %w", ref.Key(), day, err)
	}
	return ManualResult{Used: q.Used, Cap: q.Cap}, nil
}
