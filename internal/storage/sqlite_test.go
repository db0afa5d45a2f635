package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"simbank/internal/core"
	"simbank/internal/store"
	"simbank/internal/store/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "simbank.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "simbank.db")
	ctx := context.Background()
	ref := core.AccountRef{UserID: "u", Type: core.Credit}

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := s.ConsumeManual(ctx, ref, "2025-03-01", 5); err != nil {
		t.Fatalf("consume: %v", err)
	}
	tx := storetest.Transaction("sim_1", "12.34", time.Date(2025, 3, 1, 8, 0, 0, 123456789, time.UTC))
	if err := s.InsertTransaction(ctx, ref, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	// Migrations must be a no-op the second time round.
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	q, err := s.GetManual(ctx, ref, "2025-03-01")
	if err != nil || q.Used != 1 || q.Cap != 5 {
		t.Fatalf("quota lost: %+v %v", q, err)
	}
	txs, err := s.ListTransactions(ctx, ref, store.ListQuery{})
	if err != nil || len(txs) != 1 {
		t.Fatalf("transactions lost: %v %v", txs, err)
	}
	if !txs[0].Timestamp.Equal(tx.Timestamp) {
		t.Errorf("timestamp precision lost: got %v want %v", txs[0].Timestamp, tx.Timestamp)
	}
	if txs[0].Amount.StringFixed(2) != "12.34" {
		t.Errorf("amount = %s", txs[0].Amount)
	}
}

func TestSQLiteStorePing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMigrateSchemaIsIdempotent(t *testing.T) {
	dsn := buildDSN(filepath.Join(t.TempDir(), "simbank.db"))
	for i := 0; i < 2; i++ {
		v, err := migrateSchema(dsn)
		if err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
		if v != schemaVersion {
			t.Fatalf("run %d: version %d, want %d", i+1, v, schemaVersion)
		}
	}
}
