package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"simbank/internal/core"
)

// TransactionCreatedMessage is published once per persisted synthetic
// transaction. It carries the full record so consumers never read the store.
type TransactionCreatedMessage struct {
	UserID    string    `json:"userId"`
	Account   string    `json:"account"`
	ID        string    `json:"id"`
	Merchant  string    `json:"merchant"`
	Category  string    `json:"category"`
	Amount    string    `json:"amount"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	SentAt    time.Time `json:"sentAt"`
}

func NewTransactionCreatedMessage(ref core.AccountRef, tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		UserID:    ref.UserID,
		Account:   string(ref.Type),
		ID:        tx.ID,
		Merchant:  tx.Merchant,
		Category:  tx.Category,
		Amount:    tx.Amount.StringFixed(2),
		Type:      string(tx.Type),
		Source:    string(tx.Source),
		Date:      tx.Date,
		Timestamp: tx.Timestamp,
		SentAt:    time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Decode rebuilds the domain values and validates them.
func (m *TransactionCreatedMessage) Decode() (core.AccountRef, core.Transaction, error) {
	ref := core.AccountRef{UserID: m.UserID, Type: core.AccountType(m.Account)}
	if err := ref.Validate(); err != nil {
		return ref, core.Transaction{}, err
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return ref, core.Transaction{}, fmt.Errorf("parse amount %q: %w", m.Amount, err)
	}
	tx := core.Transaction{
		ID:        m.ID,
		Merchant:  m.Merchant,
		Category:  m.Category,
		Amount:    amount,
		Type:      core.TxType(m.Type),
		Source:    core.Source(m.Source),
		Date:      m.Date,
		Timestamp: m.Timestamp,
	}
	if err := tx.Validate(); err != nil {
		return ref, tx, err
	}
	return ref, tx, nil
}
