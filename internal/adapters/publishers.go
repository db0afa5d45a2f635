// Package adapters bridges the transaction event port to concrete sinks.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"simbank/internal/core"
	"simbank/internal/services"
	"simbank/internal/sheets"
)

// SheetsPublisher writes each created transaction straight to a sheet. It is
// used when no broker is configured, so the mirror happens in-process.
type SheetsPublisher struct {
	writer sheets.TransactionWriter
}

func NewSheetsPublisher(writer sheets.TransactionWriter) *SheetsPublisher {
	return &SheetsPublisher{writer: writer}
}

// PublishTransactionCreated implements services.EventPublisher
func (p *SheetsPublisher) PublishTransactionCreated(ctx context.Context, ref core.AccountRef, tx core.Transaction) error {
	if _, err := p.writer.AppendTransaction(ctx, ref, tx); err != nil {
		return fmt.Errorf("mirror transaction %s to sheet: %w", tx.ID, err)
	}
	return nil
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []services.EventPublisher

// PublishTransactionCreated implements services.EventPublisher
func (m MultiPublisher) PublishTransactionCreated(ctx context.Context, ref core.AccountRef, tx core.Transaction) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishTransactionCreated(ctx, ref, tx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ services.EventPublisher = (*SheetsPublisher)(nil)
	_ services.EventPublisher = MultiPublisher(nil)
)
