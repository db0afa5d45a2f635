package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"simbank/internal/core"
	"simbank/internal/sheets/memory"
)

type failingPublisher struct{ err error }

func (f failingPublisher) PublishTransactionCreated(context.Context, core.AccountRef, core.Transaction) error {
	return f.err
}

func sampleTransaction() core.Transaction {
	amount := decimal.RequireFromString("18.40")
	return core.Transaction{
		ID:        "tx-1",
		Merchant:  "Blue Bottle",
		Category:  "Coffee",
		Amount:    amount,
		Type:      core.TypeForAmount(amount),
		Source:    core.SourceManual,
		Date:      "2025-07-01",
		Timestamp: time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC),
	}
}

func TestSheetsPublisherAppendsRow(t *testing.T) {
	w := memory.New()
	p := NewSheetsPublisher(w)
	ref := core.AccountRef{UserID: "alice", Type: core.Credit}

	if err := p.PublishTransactionCreated(context.Background(), ref, sampleTransaction()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rows := w.Rows(); len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestSheetsPublisherWrapsWriterErrors(t *testing.T) {
	p := NewSheetsPublisher(memory.New())
	bad := sampleTransaction()
	bad.Merchant = ""
	err := p.PublishTransactionCreated(context.Background(), core.AccountRef{UserID: "alice", Type: core.Checking}, bad)
	if !errors.Is(err, core.ErrEmptyMerchant) {
		t.Fatalf("err = %v, want ErrEmptyMerchant", err)
	}
}

func TestMultiPublisherCallsEveryone(t *testing.T) {
	w := memory.New()
	boom := errors.New("broker down")
	m := MultiPublisher{failingPublisher{err: boom}, NewSheetsPublisher(w)}

	err := m.PublishTransactionCreated(context.Background(), core.AccountRef{UserID: "alice", Type: core.Checking}, sampleTransaction())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(w.Rows()) != 1 {
		t.Fatal("a failing publisher must not stop the others")
	}
	if err := (MultiPublisher{}).PublishTransactionCreated(context.Background(), core.AccountRef{}, core.Transaction{}); err != nil {
		t.Fatalf("empty fan-out: %v", err)
	}
}
