// Package sheets mirrors generated transactions into a spreadsheet for people
// who would rather read them there than in the dashboard.
package sheets

import (
	"context"

	"simbank/internal/core"
)

// TransactionWriter appends one transaction as a row and returns a reference
// to where it landed.
type TransactionWriter interface {
	AppendTransaction(ctx context.Context, ref core.AccountRef, tx core.Transaction) (rowRef string, err error)
}

// Columns is the header order every writer uses.
var Columns = []string{"Date", "Timestamp", "User", "Account", "Merchant", "Category", "Amount", "Type", "Source", "ID"}

// Row renders tx in Columns order. Amounts keep two decimals.
func Row(ref core.AccountRef, tx core.Transaction) []any {
	return []any{
		tx.Date,
		tx.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		ref.UserID,
		string(ref.Type),
		tx.Merchant,
		tx.Category,
		tx.Amount.StringFixed(2),
		string(tx.Type),
		string(tx.Source),
		tx.ID,
	}
}
