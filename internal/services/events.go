package services

import (
	"context"

	"simbank/internal/core"
)

// EventPublisher announces persisted transactions. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, ref core.AccountRef, tx core.Transaction) error
}

// NopPublisher drops every event. It is used when AMQP is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishTransactionCreated(context.Context, core.AccountRef, core.Transaction) error {
	return nil
}
