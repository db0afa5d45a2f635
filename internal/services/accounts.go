// Package services wires the quota ledger, synthesizer and stores into the
// operations the HTTP surface and the scheduler call.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"simbank/internal/cache"
	"simbank/internal/core"
	"simbank/internal/generator"
	"simbank/internal/store"
)

const (
	accountCacheSize = 1024
	accountCacheTTL  = time.Hour
)

// AccountService resolves account tokens and lazily issues accounts.
type AccountService struct {
	accounts store.AccountStore
	users    store.UserDirectory
	rnd      generator.Rand
	cache    *cache.LRU[core.AccountRef, core.Account]
}

func NewAccountService(accounts store.AccountStore, users store.UserDirectory, rnd generator.Rand) *AccountService {
	return &AccountService{
		accounts: accounts,
		users:    users,
		rnd:      rnd,
		cache:    cache.NewLRU[core.AccountRef, core.Account](accountCacheSize, accountCacheTTL),
	}
}

// Cache exposes the account cache for periodic cleanup.
func (s *AccountService) Cache() cache.Cleaner {
	return s.cache
}

// Resolve maps a user and a raw account token to an AccountRef. Empty,
// unknown and the legacy "main" token select the checking account.
func (s *AccountService) Resolve(userID, token string) (core.AccountRef, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.AccountRef{}, core.ErrEmptyUser
	}
	return core.AccountRef{UserID: userID, Type: core.ParseAccountType(token)}, nil
}

// Ensure returns the account for ref, issuing credentials on first access.
// Concurrent first calls agree on a single record.
func (s *AccountService) Ensure(ctx context.Context, ref core.AccountRef, now time.Time) (core.Account, error) {
	if a, ok := s.cache.Get(ref); ok {
		return a, nil
	}

	a, err := s.accounts.GetAccount(ctx, ref)
	if err == nil {
		s.cache.Set(ref, a)
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.Account{}, fmt.Errorf("get account %s: %w", ref.Key(), err)
	}

	a, _, err = s.accounts.EnsureAccount(ctx, core.Account{
		Ref:         ref,
		Credentials: generator.NewCredentials(s.rnd, now),
		CreatedAt:   now,
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("ensure account %s: %w", ref.Key(), err)
	}
	s.cache.Set(ref, a)
	return a, nil
}

// RegisterUser adds userID to the set the scheduled sweep visits.
func (s *AccountService) RegisterUser(ctx context.Context, userID string, now time.Time) error {
	if err := s.users.RegisterUser(ctx, userID, now); err != nil {
		return fmt.Errorf("register user %q: %w", userID, err)
	}
	return nil
}
