// Package memory is an in-process implementation of the store ports, used for
// local runs and tests. Data is lost on restart.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"simbank/internal/core"
	"simbank/internal/store"
)

const lockStripes = 64

type quotaKey struct {
	ref core.AccountRef
	day string
}

type Store struct {
	mu        sync.RWMutex
	users     map[string]time.Time
	accounts  map[core.AccountRef]core.Account
	txs       map[core.AccountRef]map[string]core.Transaction
	scheduled map[quotaKey]*store.ScheduledQuota
	manual    map[quotaKey]*store.ManualQuota

	// stripes serialize quota updates per (account, day); mu only guards the maps.
	stripes [lockStripes]sync.Mutex
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]time.Time),
		accounts:  make(map[core.AccountRef]core.Account),
		txs:       make(map[core.AccountRef]map[string]core.Transaction),
		scheduled: make(map[quotaKey]*store.ScheduledQuota),
		manual:    make(map[quotaKey]*store.ManualQuota),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) stripe(k quotaKey) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.ref.Key()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.day))
	return &s.stripes[h.Sum32()%lockStripes]
}

// RegisterUser implements store.UserDirectory.
func (s *Store) RegisterUser(_ context.Context, userID string, seenAt time.Time) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		s.users[userID] = seenAt
	}
	return nil
}

// ListUsers returns users sorted by id.
func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// EnsureAccount implements store.AccountStore.
func (s *Store) EnsureAccount(_ context.Context, a core.Account) (core.Account, bool, error) {
	if err := a.Ref.Validate(); err != nil {
		return core.Account{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[a.Ref]; ok {
		return existing, false, nil
	}
	s.accounts[a.Ref] = a
	return a, true, nil
}

func (s *Store) GetAccount(_ context.Context, ref core.AccountRef) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[ref]
	if !ok {
		return core.Account{}, store.ErrNotFound
	}
	return a, nil
}

// InsertTransaction implements store.TransactionStore.
func (s *Store) InsertTransaction(_ context.Context, ref core.AccountRef, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.txs[ref]
	if !ok {
		byID = make(map[string]core.Transaction)
		s.txs[ref] = byID
	}
	if _, dup := byID[tx.ID]; dup {
		return store.ErrDuplicateTransaction
	}
	byID[tx.ID] = tx
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ref core.AccountRef, q store.ListQuery) ([]core.Transaction, error) {
	s.mu.RLock()
	out := make([]core.Transaction, 0, len(s.txs[ref]))
	for _, tx := range s.txs[ref] {
		if !q.Since.IsZero() && tx.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, tx)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ConsumeScheduled implements store.QuotaStore.
func (s *Store) ConsumeScheduled(_ context.Context, ref core.AccountRef, day string, target int) (store.ScheduledQuota, bool, error) {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	rec, ok := s.scheduled[k]
	if !ok {
		rec = &store.ScheduledQuota{Target: target}
		s.scheduled[k] = rec
	}
	s.mu.Unlock()

	if rec.Generated >= rec.Target {
		return *rec, false, nil
	}
	rec.Generated++
	return *rec, true, nil
}

func (s *Store) ReleaseScheduled(_ context.Context, ref core.AccountRef, day string) error {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	rec, ok := s.scheduled[k]
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}
	if rec.Generated > 0 {
		rec.Generated--
	}
	return nil
}

func (s *Store) GetScheduled(_ context.Context, ref core.AccountRef, day string) (store.ScheduledQuota, error) {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.scheduled[k]
	if !ok {
		return store.ScheduledQuota{}, store.ErrNotFound
	}
	return *rec, nil
}

// ConsumeManual implements store.QuotaStore.
func (s *Store) ConsumeManual(_ context.Context, ref core.AccountRef, day string, cap int) (store.ManualQuota, bool, error) {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	rec, ok := s.manual[k]
	if !ok {
		rec = &store.ManualQuota{Cap: cap}
		s.manual[k] = rec
	}
	s.mu.Unlock()

	if rec.Used >= rec.Cap {
		return *rec, false, nil
	}
	rec.Used++
	return *rec, true, nil
}

func (s *Store) ReleaseManual(_ context.Context, ref core.AccountRef, day string) error {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	rec, ok := s.manual[k]
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}
	if rec.Used > 0 {
		rec.Used--
	}
	return nil
}

func (s *Store) GetManual(_ context.Context, ref core.AccountRef, day string) (store.ManualQuota, error) {
	k := quotaKey{ref: ref, day: day}
	l := s.stripe(k)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.manual[k]
	if !ok {
		return store.ManualQuota{}, store.ErrNotFound
	}
	return *rec, nil
}
