// Package memory is a TransactionWriter that keeps rows in process, for local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"simbank/internal/core"
	"simbank/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.TransactionWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// AppendTransaction stores the row and returns a synthetic reference.
func (w *Writer) AppendTransaction(_ context.Context, ref core.AccountRef, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, sheets.Row(ref, tx))
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]any, len(w.rows))
	copy(out, w.rows)
	return out
}
