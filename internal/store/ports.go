// Package store defines the persistence ports the services depend on.
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"simbank/internal/core"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

type (
	// ScheduledQuota is the scheduler's per-day allowance: 0 <= Generated <= Target.
	ScheduledQuota struct {
		Target    int
		Generated int
	}

	// ManualQuota is the user-triggered per-day allowance: 0 <= Used <= Cap.
	ManualQuota struct {
		Used int
		Cap  int
	}

	ListQuery struct {
		Limit int       // <= 0 means no limit
		Since time.Time // zero means no lower bound
	}
)

// EarliestInstant and LatestInstant bound the timestamps a store can order by
// nanosecond. Transactions are always stamped inside this range.
var (
	EarliestInstant = time.Unix(0, math.MinInt64).UTC()
	LatestInstant   = time.Unix(0, math.MaxInt64).UTC()
)

type (
	AccountStore interface {
		// EnsureAccount inserts a unless an account already exists for a.Ref.
		// It returns the stored record and whether this call created it.
		EnsureAccount(ctx context.Context, a core.Account) (core.Account, bool, error)
		GetAccount(ctx context.Context, ref core.AccountRef) (core.Account, error)
	}

	TransactionStore interface {
		// InsertTransaction returns ErrDuplicateTransaction when tx.ID is taken
		// within the account.
		InsertTransaction(ctx context.Context, ref core.AccountRef, tx core.Transaction) error
		// ListTransactions returns newest first, Since inclusive, then Limit.
		ListTransactions(ctx context.Context, ref core.AccountRef, q ListQuery) ([]core.Transaction, error)
	}

	// QuotaStore owns the per-(account, day) counters. Consume calls create the
	// record on first access using target/cap and then increment atomically
	// only while below the limit.
	QuotaStore interface {
		ConsumeScheduled(ctx context.Context, ref core.AccountRef, day string, target int) (ScheduledQuota, bool, error)
		ReleaseScheduled(ctx context.Context, ref core.AccountRef, day string) error
		GetScheduled(ctx context.Context, ref core.AccountRef, day string) (ScheduledQuota, error)

		ConsumeManual(ctx context.Context, ref core.AccountRef, day string, cap int) (ManualQuota, bool, error)
		ReleaseManual(ctx context.Context, ref core.AccountRef, day string) error
		GetManual(ctx context.Context, ref core.AccountRef, day string) (ManualQuota, error)
	}

	// UserDirectory lists the users the scheduled sweep visits.
	UserDirectory interface {
		RegisterUser(ctx context.Context, userID string, seenAt time.Time) error
		ListUsers(ctx context.Context) ([]string, error)
	}

	Store interface {
		AccountStore
		TransactionStore
		QuotaStore
		UserDirectory
		Close() error
	}
)
