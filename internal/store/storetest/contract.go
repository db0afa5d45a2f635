// Package storetest holds behaviour tests every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"simbank/internal/core"
	"simbank/internal/store"
)

// Factory returns a fresh, empty store. It should register cleanup with t.
type Factory func(t *testing.T) store.Store

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("accounts are immutable", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("transactions round trip", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("since outside the nanosecond range", func(t *testing.T) { testSinceBounds(t, newStore(t)) })
	t.Run("duplicate transaction id", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("scheduled quota", func(t *testing.T) { testScheduled(t, newStore(t)) })
	t.Run("manual quota", func(t *testing.T) { testManual(t, newStore(t)) })
	t.Run("concurrent manual consume", func(t *testing.T) { testConcurrentManual(t, newStore(t)) })
	t.Run("concurrent scheduled consume", func(t *testing.T) { testConcurrentScheduled(t, newStore(t)) })
}

var ref = core.AccountRef{UserID: "user-1", Type: core.Checking}

func account(r core.AccountRef, number string) core.Account {
	return core.Account{
		Ref:         r,
		Credentials: core.Credentials{Number: number, CVV: "123", Expiry: "01/30"},
		CreatedAt:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Transaction builds a valid transaction stamped at ts.
func Transaction(id string, amount string, ts time.Time) core.Transaction {
	amt := decimal.RequireFromString(amount)
	return core.Transaction{
		ID:        id,
		Merchant:  "Costco",
		Category:  "Groceries",
		Amount:    amt,
		Type:      core.TypeForAmount(amt),
		Source:    core.SourceManual,
		Date:      core.DayKey(ts, time.UTC),
		Timestamp: ts,
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"b", "a", "b"} {
		if err := s.RegisterUser(ctx, id, now); err != nil {
			t.Fatalf("RegisterUser(%q): %v", id, err)
		}
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0] != "a" || users[1] != "b" {
		t.Fatalf("unexpected users %v", users)
	}
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetAccount(ctx, ref); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, created, err := s.EnsureAccount(ctx, account(ref, "1111222233334444"))
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	second, created, err := s.EnsureAccount(ctx, account(ref, "9999888877776666"))
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	if second.Credentials != first.Credentials {
		t.Fatalf("credentials changed: %+v -> %+v", first.Credentials, second.Credentials)
	}

	got, err := s.GetAccount(ctx, ref)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Credentials.Number != "1111222233334444" || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("unexpected account %+v", got)
	}

	credit := core.AccountRef{UserID: ref.UserID, Type: core.Credit}
	if _, created, _ := s.EnsureAccount(ctx, account(credit, "5555666677778888")); !created {
		t.Fatal("credit account should be distinct from checking")
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, amt := range []string{"10.00", "-4.25", "99.99"} {
		tx := Transaction("tx-"+string(rune('a'+i)), amt, base.Add(time.Duration(i)*time.Hour))
		if err := s.InsertTransaction(ctx, ref, tx); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := s.ListTransactions(ctx, ref, store.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "tx-c" || all[2].ID != "tx-a" {
		t.Fatalf("unexpected order %v", ids(all))
	}
	if !all[1].Amount.Equal(decimal.RequireFromString("-4.25")) || all[1].Type != core.TypeRefund {
		t.Fatalf("refund did not round trip: %+v", all[1])
	}
	if all[0].Merchant != "Costco" || all[0].Category != "Groceries" || !all[0].Timestamp.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("fields did not round trip: %+v", all[0])
	}

	limited, _ := s.ListTransactions(ctx, ref, store.ListQuery{Limit: 2})
	if len(limited) != 2 || limited[0].ID != "tx-c" {
		t.Fatalf("limit: %v", ids(limited))
	}

	since, _ := s.ListTransactions(ctx, ref, store.ListQuery{Since: base.Add(time.Hour)})
	if len(since) != 2 || since[1].ID != "tx-b" {
		t.Fatalf("since is inclusive: %v", ids(since))
	}

	other, _ := s.ListTransactions(ctx, core.AccountRef{UserID: "user-2", Type: core.Checking}, store.ListQuery{})
	if len(other) != 0 {
		t.Fatalf("transactions leaked across accounts: %v", ids(other))
	}
}

func testSinceBounds(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.InsertTransaction(ctx, ref, Transaction("tx-2025", "12.50", time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tests := []struct {
		name  string
		since time.Time
		want  int
	}{
		{"year 1500", time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{"unix epoch", time.Unix(0, 0).UTC(), 1},
		{"year 2500", time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC), 0},
		{"year 9999", time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		got, err := s.ListTransactions(ctx, ref, store.ListQuery{Since: tt.since})
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: got %v, want %d items", tt.name, ids(got), tt.want)
		}
	}
}

func testDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := Transaction("same", "1.00", time.Now().UTC())
	if err := s.InsertTransaction(ctx, ref, tx); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertTransaction(ctx, ref, tx); !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	credit := core.AccountRef{UserID: ref.UserID, Type: core.Credit}
	if err := s.InsertTransaction(ctx, credit, tx); err != nil {
		t.Fatalf("id should only be unique within an account: %v", err)
	}
}

func testScheduled(t *testing.T, s store.Store) {
	ctx := context.Background()
	const day = "2025-03-01"
	if _, err := s.GetScheduled(ctx, ref, day); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for i := 1; i <= 3; i++ {
		q, ok, err := s.ConsumeScheduled(ctx, ref, day, 3)
		if err != nil || !ok || q.Generated != i || q.Target != 3 {
			t.Fatalf("consume %d: q=%+v ok=%v err=%v", i, q, ok, err)
		}
	}
	// A different target on a later call must not re-roll the day.
	q, ok, err := s.ConsumeScheduled(ctx, ref, day, 10)
	if err != nil || ok || q.Generated != 3 || q.Target != 3 {
		t.Fatalf("exhausted: q=%+v ok=%v err=%v", q, ok, err)
	}

	if err := s.ReleaseScheduled(ctx, ref, day); err != nil {
		t.Fatalf("release: %v", err)
	}
	if q, _ := s.GetScheduled(ctx, ref, day); q.Generated != 2 {
		t.Fatalf("release did not decrement: %+v", q)
	}
	if _, ok, _ := s.ConsumeScheduled(ctx, ref, "2025-03-02", 1); !ok {
		t.Fatal("new day should start fresh")
	}
}

func testManual(t *testing.T, s store.Store) {
	ctx := context.Background()
	const day = "2025-03-01"
	for i := 1; i <= 2; i++ {
		if q, ok, err := s.ConsumeManual(ctx, ref, day, 2); err != nil || !ok || q.Used != i {
			t.Fatalf("consume %d: q=%+v ok=%v err=%v", i, q, ok, err)
		}
	}
	// Cap is fixed when the record is created.
	q, ok, err := s.ConsumeManual(ctx, ref, day, 5)
	if err != nil || ok || q.Used != 2 || q.Cap != 2 {
		t.Fatalf("exhausted: q=%+v ok=%v err=%v", q, ok, err)
	}
	for i := 0; i < 3; i++ {
		if err := s.ReleaseManual(ctx, ref, day); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
	if q, _ := s.GetManual(ctx, ref, day); q.Used != 0 {
		t.Fatalf("release must not go below zero: %+v", q)
	}
	if err := s.ReleaseManual(ctx, ref, "1999-01-01"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("release of unknown day: %v", err)
	}
}

func testConcurrentManual(t *testing.T, s store.Store) {
	ctx := context.Background()
	const (
		day     = "2025-03-01"
		callers = 40
		cap     = 5
	)
	var wg sync.WaitGroup
	var allowed, denied int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ConsumeManual(ctx, ref, day, cap)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&allowed, 1)
			} else {
				atomic.AddInt64(&denied, 1)
			}
		}()
	}
	wg.Wait()
	if allowed != cap || denied != callers-cap {
		t.Fatalf("allowed=%d denied=%d", allowed, denied)
	}
	if q, _ := s.GetManual(ctx, ref, day); q.Used != cap {
		t.Fatalf("final used = %d", q.Used)
	}
}

func testConcurrentScheduled(t *testing.T, s store.Store) {
	ctx := context.Background()
	const day = "2025-03-01"
	var wg sync.WaitGroup
	var allowed int64
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each caller proposes a different target; only the first one sticks.
			_, ok, err := s.ConsumeScheduled(ctx, ref, day, 3+i%3)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&allowed, 1)
			}
		}(i)
	}
	wg.Wait()
	q, err := s.GetScheduled(ctx, ref, day)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Generated > q.Target || int64(q.Generated) != allowed || q.Generated != q.Target {
		t.Fatalf("q=%+v allowed=%d", q, allowed)
	}
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
