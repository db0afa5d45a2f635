// Package storage is the durable SQLite implementation of the store ports.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"simbank/internal/core"
	"simbank/internal/store"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and applies
// pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := buildDSN(dbPath)
	v, err := migrateSchema(dsn)
	if err != nil {
		return nil, err
	}
	if v != schemaVersion {
		return nil, fmt.Errorf("simbank schema at version %d, want %d", v, schemaVersion)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection turns every transaction below into a
	// serialized critical section, which the quota counters rely on.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func buildDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterUser implements store.UserDirectory.
func (s *SQLiteStore) RegisterUser(ctx context.Context, userID string, seenAt time.Time) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, first_seen_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`,
		userID, seenAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// EnsureAccount implements store.AccountStore. Existing credentials are never
// overwritten.
func (s *SQLiteStore) EnsureAccount(ctx context.Context, a core.Account) (core.Account, bool, error) {
	if err := a.Ref.Validate(); err != nil {
		return core.Account{}, false, err
	}

	var (
		stored  core.Account
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (user_id, account_type, card_number, cvv, expiry, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, account_type) DO NOTHING`,
			a.Ref.UserID, string(a.Ref.Type),
			a.Credentials.Number, a.Credentials.CVV, a.Credentials.Expiry,
			a.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		stored, err = getAccount(ctx, tx, a.Ref)
		return err
	})
	if err != nil {
		return core.Account{}, false, err
	}

	if created {
		slog.InfoContext(ctx, "Account created",
			"user_id", a.Ref.UserID,
			"account", string(a.Ref.Type))
	}
	return stored, created, nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, ref core.AccountRef) (core.Account, error) {
	return getAccount(ctx, s.db, ref)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAccount(ctx context.Context, q queryer, ref core.AccountRef) (core.Account, error) {
	a := core.Account{Ref: ref}
	var createdMs int64
	err := q.QueryRowContext(ctx, `
		SELECT card_number, cvv, expiry, created_at
		FROM accounts WHERE user_id = ? AND account_type = ?`,
		ref.UserID, string(ref.Type),
	).Scan(&a.Credentials.Number, &a.Credentials.CVV, &a.Credentials.Expiry, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, store.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	return a, nil
}

// InsertTransaction implements store.TransactionStore.
func (s *SQLiteStore) InsertTransaction(ctx context.Context, ref core.AccountRef, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, account_type, id, merchant, category, amount_cents, tx_type, source, day_key, ts_unix_nano)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.UserID, string(ref.Type), t.ID, t.Merchant, t.Category,
		t.Amount.Shift(2).IntPart(), string(t.Type), string(t.Source), t.Date,
		t.Timestamp.UnixNano())
	if isPrimaryKeyViolation(err) {
		return store.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"user_id", ref.UserID,
		"account", string(ref.Type),
		"id", t.ID,
		"amount", t.Amount.StringFixed(2),
		"source", string(t.Source))
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, ref core.AccountRef, q store.ListQuery) ([]core.Transaction, error) {
	limit := -1 // SQLite reads a negative LIMIT as unbounded
	if q.Limit > 0 {
		limit = q.Limit
	}
	// Bounds before EarliestInstant match everything; bounds after
	// LatestInstant match nothing.
	var since sql.NullInt64
	switch {
	case q.Since.IsZero() || q.Since.Before(store.EarliestInstant):
	case q.Since.After(store.LatestInstant):
		return nil, nil
	default:
		since = sql.NullInt64{Int64: q.Since.UnixNano(), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant, category, amount_cents, tx_type, source, day_key, ts_unix_nano
		FROM transactions
		WHERE user_id = ? AND account_type = ? AND (? IS NULL OR ts_unix_nano >= ?)
		ORDER BY ts_unix_nano DESC, id DESC
		LIMIT ?`,
		ref.UserID, string(ref.Type), since, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t              core.Transaction
			cents, tsNano  int64
			txType, source string
		)
		if err := rows.Scan(&t.ID, &t.Merchant, &t.Category, &cents, &txType, &source, &t.Date, &tsNano); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount = decimal.New(cents, -2)
		t.Type = core.TxType(txType)
		t.Source = core.Source(source)
		t.Timestamp = time.Unix(0, tsNano).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// ConsumeScheduled implements store.QuotaStore.
func (s *SQLiteStore) ConsumeScheduled(ctx context.Context, ref core.AccountRef, day string, target int) (store.ScheduledQuota, bool, error) {
	var (
		q  store.ScheduledQuota
		ok bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_quotas (user_id, account_type, day_key, target, generated)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT (user_id, account_type, day_key) DO NOTHING`,
			ref.UserID, string(ref.Type), day, target); err != nil {
			return fmt.Errorf("create scheduled quota: %w", err)
		}

		err := tx.QueryRowContext(ctx, `
			UPDATE scheduled_quotas SET generated = generated + 1
			WHERE user_id = ? AND account_type = ? AND day_key = ? AND generated < target
			RETURNING target, generated`,
			ref.UserID, string(ref.Type), day,
		).Scan(&q.Target, &q.Generated)
		if err == nil {
			ok = true
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("consume scheduled quota: %w", err)
		}
		return tx.QueryRowContext(ctx, `
			SELECT target, generated FROM scheduled_quotas
			WHERE user_id = ? AND account_type = ? AND day_key = ?`,
			ref.UserID, string(ref.Type), day,
		).Scan(&q.Target, &q.Generated)
	})
	return q, ok, err
}

func (s *SQLiteStore) ReleaseScheduled(ctx context.Context, ref core.AccountRef, day string) error {
	return s.release(ctx, `
		UPDATE scheduled_quotas SET generated = MAX(generated - 1, 0)
		WHERE user_id = ? AND account_type = ? AND day_key = ?`, ref, day)
}

func (s *SQLiteStore) GetScheduled(ctx context.Context, ref core.AccountRef, day string) (store.ScheduledQuota, error) {
	var q store.ScheduledQuota
	err := s.db.QueryRowContext(ctx, `
		SELECT target, generated FROM scheduled_quotas
		WHERE user_id = ? AND account_type = ? AND day_key = ?`,
		ref.UserID, string(ref.Type), day,
	).Scan(&q.Target, &q.Generated)
	if errors.Is(err, sql.ErrNoRows) {
		return q, store.ErrNotFound
	}
	if err != nil {
		return q, fmt.Errorf("get scheduled quota: %w", err)
	}
	return q, nil
}

// ConsumeManual implements store.QuotaStore.
func (s *SQLiteStore) ConsumeManual(ctx context.Context, ref core.AccountRef, day string, cap int) (store.ManualQuota, bool, error) {
	var (
		q  store.ManualQuota
		ok bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO manual_quotas (user_id, account_type, day_key, cap, used)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT (user_id, account_type, day_key) DO NOTHING`,
			ref.UserID, string(ref.Type), day, cap); err != nil {
			return fmt.Errorf("create manual quota: %w", err)
		}

		err := tx.QueryRowContext(ctx, `
			UPDATE manual_quotas SET used = used + 1
			WHERE user_id = ? AND account_type = ? AND day_key = ? AND used < cap
			RETURNING used, cap`,
			ref.UserID, string(ref.Type), day,
		).Scan(&q.Used, &q.Cap)
		if err == nil {
			ok = true
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("consume manual quota: %w", err)
		}
		return tx.QueryRowContext(ctx, `
			SELECT used, cap FROM manual_quotas
			WHERE user_id = ? AND account_type = ? AND day_key = ?`,
			ref.UserID, string(ref.Type), day,
		).Scan(&q.Used, &q.Cap)
	})
	return q, ok, err
}

func (s *SQLiteStore) ReleaseManual(ctx context.Context, ref core.AccountRef, day string) error {
	return s.release(ctx, `
		UPDATE manual_quotas SET used = MAX(used - 1, 0)
		WHERE user_id = ? AND account_type = ? AND day_key = ?`, ref, day)
}

func (s *SQLiteStore) GetManual(ctx context.Context, ref core.AccountRef, day string) (store.ManualQuota, error) {
	var q store.ManualQuota
	err := s.db.QueryRowContext(ctx, `
		SELECT used, cap FROM manual_quotas
		WHERE user_id = ? AND account_type = ? AND day_key = ?`,
		ref.UserID, string(ref.Type), day,
	).Scan(&q.Used, &q.Cap)
	if errors.Is(err, sql.ErrNoRows) {
		return q, store.ErrNotFound
	}
	if err != nil {
		return q, fmt.Errorf("get manual quota: %w", err)
	}
	return q, nil
}

func (s *SQLiteStore) release(ctx context.Context, query string, ref core.AccountRef, day string) error {
	res, err := s.db.ExecContext(ctx, query, ref.UserID, string(ref.Type), day)
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
