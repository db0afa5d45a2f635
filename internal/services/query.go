package services

import (
	"context"
	"fmt"
	"time"

	"simbank/internal/core"
	"simbank/internal/store"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

type ListOptions struct {
	Limit int       // DefaultListLimit when <= 0, capped at MaxListLimit
	Since time.Time // inclusive; zero means everything
}

// QueryService is the read side used by the dashboard.
type QueryService struct {
	txs  store.TransactionStore
	days core.DayResolver
}

func NewQueryService(txs store.TransactionStore, days core.DayResolver) *QueryService {
	return &QueryService{txs: txs, days: days}
}

// ListTransactions returns ref's transactions newest first. The day-key is
// recomputed from each timestamp so a timezone change applies to history too.
func (s *QueryService) ListTransactions(ctx context.Context, ref core.AccountRef, opts ListOptions) ([]core.Transaction, error) {
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	txs, err := s.txs.ListTransactions(ctx, ref, store.ListQuery{Limit: limit, Since: opts.Since})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", ref.Key(), err)
	}
	for i := range txs {
		txs[i].Date = s.days.Key(txs[i].Timestamp)
	}
	return txs, nil
}
