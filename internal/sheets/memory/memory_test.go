package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"simbank/internal/core"
)

func TestWriterAppendAndRows(t *testing.T) {
	w := New()
	ref := core.AccountRef{UserID: "u1", Type: core.Checking}
	amt := decimal.RequireFromString("7.5")
	tx := core.Transaction{
		ID: "sim_1", Merchant: "Starbucks", Category: "Dining",
		Amount: amt, Type: core.TypeForAmount(amt), Source: core.SourceManual,
		Date: "2025-03-01", Timestamp: time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
	}

	rowRef, err := w.AppendTransaction(context.Background(), ref, tx)
	if err != nil || rowRef != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", rowRef, err)
	}
	rows := w.Rows()
	if len(rows) != 1 || rows[0][6] != "7.50" || rows[0][9] != "sim_1" {
		t.Fatalf("unexpected rows %v", rows)
	}

	tx.Merchant = ""
	if _, err := w.AppendTransaction(context.Background(), ref, tx); err == nil {
		t.Fatal("invalid transaction should be rejected")
	}
}
