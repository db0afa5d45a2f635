// Package worker consumes transaction events and fans them out to secondary
// sinks.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"simbank/internal/amqp"
	"simbank/internal/cache"
	"simbank/internal/sheets"
)

const (
	seenCacheSize = 4096
	seenCacheTTL  = 24 * time.Hour
)

// EventSource is satisfied by *amqp.Client.
type EventSource interface {
	ConsumeTransactionCreated(ctx context.Context, handler func(context.Context, *amqp.TransactionCreatedMessage) error) error
}

// MirrorWorker copies every transaction.created event into a spreadsheet.
// Redeliveries of an id it already wrote are acknowledged without writing again.
type MirrorWorker struct {
	source EventSource
	writer sheets.TransactionWriter
	seen   *cache.LRU[string, string]
}

func NewMirrorWorker(source EventSource, writer sheets.TransactionWriter) *MirrorWorker {
	return &MirrorWorker{
		source: source,
		writer: writer,
		seen:   cache.NewLRU[string, string](seenCacheSize, seenCacheTTL),
	}
}

// SeenCache exposes the dedupe cache so callers can register it for cleanup.
func (w *MirrorWorker) SeenCache() cache.Cleaner {
	return w.seen
}

// Run blocks until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context) error {
	return w.source.ConsumeTransactionCreated(ctx, w.Handle)
}

// Handle mirrors a single event. A returned error requeues the delivery.
func (w *MirrorWorker) Handle(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	ref, tx, err := msg.Decode()
	if err != nil {
		// Requeueing a malformed event would loop forever.
		slog.ErrorContext(ctx, "Skipping invalid transaction event",
			"tx_id", msg.ID,
			"user_id", msg.UserID,
			"error", err)
		return nil
	}

	key := ref.Key() + "/" + tx.ID
	if rowRef, ok := w.seen.Get(key); ok {
		slog.InfoContext(ctx, "Transaction already mirrored", "tx_id", tx.ID, "row", rowRef)
		return nil
	}

	rowRef, err := w.writer.AppendTransaction(ctx, ref, tx)
	if err != nil {
		return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}
	w.seen.Set(key, rowRef)

	slog.InfoContext(ctx, "Transaction mirrored",
		"tx_id", tx.ID,
		"user_id", ref.UserID,
		"account", string(ref.Type),
		"row", rowRef)
	return nil
}
