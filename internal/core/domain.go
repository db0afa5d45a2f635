package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Checking AccountType = "checking"
	Credit   AccountType = "credit"

	SourceScheduled Source = "scheduled"
	SourceManual    Source = "manual"

	TypeExpense TxType = "expense"
	TypeRefund  TxType = "refund"
)

// AccountTypes lists every supported account type in sweep order.
var AccountTypes = []AccountType{Checking, Credit}

type (
	AccountType string

	// Source records who asked for a transaction to be generated.
	Source string

	TxType string

	// AccountRef identifies an account: one per (user, type).
	AccountRef struct {
		UserID string
		Type   AccountType
	}

	// Credentials are the synthetic card details issued when an account is created.
	Credentials struct {
		Number string // 16 digits
		CVV    string // 3 digits
		Expiry string // MM/YY
	}

	Account struct {
		Ref         AccountRef
		Credentials Credentials
		CreatedAt   time.Time
	}

	Transaction struct {
		ID        string
		Merchant  string
		Category  string
		Amount    decimal.Decimal
		Type      TxType
		Source    Source
		Date      string // civil day-key of Timestamp
		Timestamp time.Time
	}
)

var (
	ErrEmptyUser        = errors.New("empty user id")
	ErrInvalidAccount   = errors.New("invalid account type")
	ErrEmptyID          = errors.New("empty transaction id")
	ErrEmptyMerchant    = errors.New("empty merchant")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidSource    = errors.New("invalid source")
	ErrTypeMismatch     = errors.New("transaction type does not match amount sign")
	ErrZeroTimestamp    = errors.New("zero timestamp")
	ErrInvalidPrecision = errors.New("amount has more than 2 decimal places")
	ErrDayMismatch      = errors.New("transaction date does not match its timestamp")
)

// ParseAccountType normalizes an account token. Unknown, empty and the legacy
// "main" token all resolve to Checking so older dashboards keep working.
func ParseAccountType(raw string) AccountType {
	switch AccountType(strings.ToLower(strings.TrimSpace(raw))) {
	case Credit:
		return Credit
	default:
		return Checking
	}
}

func (t AccountType) IsValid() bool {
	return t == Checking || t == Credit
}

func (s Source) IsValid() bool {
	return s == SourceScheduled || s == SourceManual
}

// Key returns a stable string form used for locks and cache keys.
func (r AccountRef) Key() string {
	return r.UserID + "/" + string(r.Type)
}

func (r AccountRef) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUser
	}
	if !r.Type.IsValid() {
		return ErrInvalidAccount
	}
	return nil
}

// Last4 returns the trailing four digits of the account number.
func (a Account) Last4() string {
	n := a.Credentials.Number
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// TypeForAmount derives the transaction type from the amount sign.
func TypeForAmount(amount decimal.Decimal) TxType {
	if amount.IsNegative() {
		return TypeRefund
	}
	return TypeExpense
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Source.IsValid() {
		return ErrInvalidSource
	}
	if t.Type != TypeForAmount(t.Amount) {
		return ErrTypeMismatch
	}
	if !t.Amount.Equal(t.Amount.Round(2)) {
		return ErrInvalidPrecision
	}
	if t.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// ValidateIn runs Validate and also checks that Date is the day-key of
// Timestamp in loc.
func (t Transaction) ValidateIn(loc *time.Location) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if want := DayKey(t.Timestamp, loc); t.Date != want {
		return fmt.Errorf("%w: date %q, timestamp falls on %s", ErrDayMismatch, t.Date, want)
	}
	return nil
}
