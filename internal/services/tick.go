package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"simbank/internal/core"
	"simbank/internal/generator"
	applog "simbank/internal/log"
	"simbank/internal/quota"
	"simbank/internal/store"
)

const (
	DefaultSweepConcurrency = 4
	maxIDAttempts           = 3
	releaseTimeout          = 5 * time.Second
)

// QuotaExceededError is returned by ManualTick once the day's manual cap is used up.
type QuotaExceededError struct {
	Used    int
	Cap     int
	Account core.AccountType
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit reached for %s account: %d of %d used", e.Account, e.Used, e.Cap)
}

type TickResult struct {
	Transaction core.Transaction
	Remaining   int
	Account     core.AccountType
}

type SweepFailure struct {
	Ref core.AccountRef
	Err error
}

type SweepReport struct {
	Day      string
	Created  []core.Transaction
	Failures []SweepFailure
}

type TickDeps struct {
	Accounts     *AccountService
	Ledger       *quota.Ledger
	Synthesizer  *generator.Synthesizer
	Transactions store.TransactionStore
	Users        store.UserDirectory
	Days         core.DayResolver
	Events       EventPublisher // optional
	Logger       *applog.Logger // optional
	Concurrency  int            // sweep parallelism, DefaultSweepConcurrency when <= 0
}

// TickService runs the scheduled sweep and manual ticks.
type TickService struct {
	accounts    *AccountService
	ledger      *quota.Ledger
	synth       *generator.Synthesizer
	txs         store.TransactionStore
	users       store.UserDirectory
	days        core.DayResolver
	events      EventPublisher
	logger      *applog.Logger
	concurrency int

	sweeping sync.Mutex
}

func NewTickService(d TickDeps) (*TickService, error) {
	if d.Accounts == nil || d.Ledger == nil || d.Synthesizer == nil || d.Transactions == nil || d.Users == nil {
		return nil, errors.New("tick service: missing dependency")
	}
	s := &TickService{
		accounts:    d.Accounts,
		ledger:      d.Ledger,
		synth:       d.Synthesizer,
		txs:         d.Transactions,
		users:       d.Users,
		days:        d.Days,
		events:      d.Events,
		logger:      d.Logger,
		concurrency: d.Concurrency,
	}
	if s.events == nil {
		s.events = NopPublisher{}
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultSweepConcurrency
	}
	return s, nil
}

// Sweep gives every known account at most one scheduled transaction, subject
// to the day's target. Failures on one account are logged and reported but do
// not stop the others. The returned error is only set when the user list
// cannot be read.
func (s *TickService) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	logger := s.logger.WithComponent(applog.ComponentSweep)
	day := s.days.Key(now)
	report := SweepReport{Day: day}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	type outcome struct {
		tx      *core.Transaction
		failure *SweepFailure
	}
	refs := make([]core.AccountRef, 0, len(users)*len(core.AccountTypes))
	for _, u := range users {
		for _, t := range core.AccountTypes {
			refs = append(refs, core.AccountRef{UserID: u, Type: t})
		}
	}
	results := make([]outcome, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			tx, err := s.sweepAccount(gctx, ref, day, now)
			switch {
			case err != nil:
				logger.ErrorContext(gctx, "Sweep failed for account",
					applog.NewFields().WithAccount(ref).WithError(err).WithOperation(applog.OpCreate).ToSlice()...)
				results[i].failure = &SweepFailure{Ref: ref, Err: err}
			case tx != nil:
				results[i].tx = tx
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.tx != nil {
			report.Created = append(report.Created, *r.tx)
		}
		if r.failure != nil {
			report.Failures = append(report.Failures, *r.failure)
		}
	}

	logger.InfoContext(ctx, "Sweep complete",
		applog.FieldDay, day,
		"accounts", len(refs),
		applog.FieldCreated, len(report.Created),
		applog.FieldFailures, len(report.Failures))
	return report, nil
}

// sweepAccount returns a nil transaction when the day's target is already met.
func (s *TickService) sweepAccount(ctx context.Context, ref core.AccountRef, day string, now time.Time) (*core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.Ensure(ctx, ref, now); err != nil {
		return nil, err
	}
	ok, err := s.ledger.ConsumeScheduled(ctx, ref, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	tx, err := s.create(ctx, ref, core.SourceScheduled, now)
	if err != nil {
		if rerr := s.release(ctx, func(rctx context.Context) error {
			return s.ledger.ReleaseScheduled(rctx, ref, day)
		}); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	return &tx, nil
}

// ManualTick creates one transaction on behalf of the user, charged against
// the day's manual cap.
func (s *TickService) ManualTick(ctx context.Context, userID, token string, now time.Time) (TickResult, error) {
	ref, err := s.accounts.Resolve(userID, token)
	if err != nil {
		return TickResult{}, err
	}
	if _, err := s.accounts.Ensure(ctx, ref, now); err != nil {
		return TickResult{}, err
	}

	day := s.days.Key(now)
	res, err := s.ledger.ConsumeManual(ctx, ref, day)
	if err != nil {
		return TickResult{}, err
	}
	if !res.Allowed {
		return TickResult{}, &QuotaExceededError{Used: res.Used, Cap: res.Cap, Account: ref.Type}
	}

	tx, err := s.create(ctx, ref, core.SourceManual, now)
	if err != nil {
		if rerr := s.release(ctx, func(rctx context.Context) error {
			return s.ledger.ReleaseManual(rctx, ref, day)
		}); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return TickResult{}, err
	}

	return TickResult{Transaction: tx, Remaining: res.Remaining(), Account: ref.Type}, nil
}

// ManualStatus reports today's manual usage for ref without consuming a slot.
func (s *TickService) ManualStatus(ctx context.Context, ref core.AccountRef, now time.Time) (quota.ManualResult, error) {
	return s.ledger.ManualUsage(ctx, ref, s.days.Key(now))
}

// release gives a consumed slot back. It runs detached from ctx's
// cancellation since a canceled caller is the usual reason the persist failed.
func (s *TickService) release(ctx context.Context, fn func(context.Context) error) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	return fn(rctx)
}

// create synthesizes and persists one transaction, drawing a fresh id when the
// store reports a collision, then publishes the event.
func (s *TickService) create(ctx context.Context, ref core.AccountRef, source core.Source, now time.Time) (core.Transaction, error) {
	tx, err := s.synth.Next(source, now)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("synthesize: %w", err)
	}

	if err := tx.ValidateIn(s.days.Location()); err != nil {
		return core.Transaction{}, fmt.Errorf("synthesize: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = s.txs.InsertTransaction(ctx, ref, tx)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateTransaction) || attempt >= maxIDAttempts {
			return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
		}
		if tx.ID, err = s.synth.NewID(); err != nil {
			return core.Transaction{}, fmt.Errorf("new transaction id: %w", err)
		}
	}

	applog.NewStructuredLogger(s.logger.WithComponent(applog.ComponentTick)).LogTransactionCreated(ctx, ref, tx)

	if err := s.events.PublishTransactionCreated(ctx, ref, tx); err != nil {
		s.logger.WithComponent(applog.ComponentAMQP).WarnContext(ctx, "Failed to publish transaction event",
			applog.NewFields().WithAccount(ref).WithError(err).WithOperation(applog.OpPublish).ToSlice()...)
	}
	return tx, nil
}

// SweepExclusive runs Sweep unless another one is in progress in this
// process, in which case it reports skipped.
func (s *TickService) SweepExclusive(ctx context.Context, now time.Time) (report SweepReport, skipped bool, err error) {
	if !s.sweeping.TryLock() {
		return SweepReport{}, true, nil
	}
	defer s.sweeping.Unlock()
	report, err = s.Sweep(ctx, now)
	return report, false, err
}
