package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"simbank/internal/core"
	"simbank/internal/services"
	"simbank/internal/store"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var (
	errInvalidLimit = errors.New("limit must be a positive integer")
	errInvalidSince = errors.New("since must be an ISO-8601 timestamp or date")
)

type transactionJSON struct {
	ID        string      `json:"id"`
	Merchant  string      `json:"merchant"`
	Category  string      `json:"category"`
	Amount    json.Number `json:"amount"`
	Type      core.TxType `json:"type"`
	Source    core.Source `json:"source"`
	Date      string      `json:"date"`
	Timestamp string      `json:"timestamp"`
}

func newTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:        tx.ID,
		Merchant:  tx.Merchant,
		Category:  tx.Category,
		Amount:    json.Number(tx.Amount.StringFixed(2)),
		Type:      tx.Type,
		Source:    tx.Source,
		Date:      tx.Date,
		Timestamp: formatTimestamp(tx.Timestamp),
	}
}

type accountJSON struct {
	Account       core.AccountType `json:"account"`
	AccountNumber string           `json:"accountNumber"`
	Last4         string           `json:"last4"`
	CVV           string           `json:"cvv"`
	Expiry        string           `json:"expiry"`
	CreatedAt     string           `json:"createdAt"`
	Manual        manualJSON       `json:"manual"`
}

// manualJSON is today's manual tick usage.
type manualJSON struct {
	Used      int `json:"used"`
	Cap       int `json:"cap"`
	Remaining int `json:"remaining"`
}

func newAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		Account:       a.Ref.Type,
		AccountNumber: a.Credentials.Number,
		Last4:         a.Last4(),
		CVV:           a.Credentials.CVV,
		Expiry:        a.Credentials.Expiry,
		CreatedAt:     formatTimestamp(a.CreatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseListOptions reads limit and since. Missing values fall through to the
// query service defaults.
func parseListOptions(r *http.Request) (services.ListOptions, error) {
	var opts services.ListOptions
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, errInvalidLimit
		}
		opts.Limit = n
	}
	if v := strings.TrimSpace(q.Get("since")); v != "" {
		since, err := parseSince(v)
		if err != nil {
			return opts, err
		}
		opts.Since = since
	}
	return opts, nil
}

// parseSince accepts RFC 3339 instants, with or without fractional seconds,
// and bare dates, which are read as UTC midnight. Instants the stores cannot
// order by nanosecond are rejected.
func parseSince(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		t, err = time.Parse(time.DateOnly, v)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidSince, v)
	}
	if t.Before(store.EarliestInstant) || t.After(store.LatestInstant) {
		return time.Time{}, fmt.Errorf("%w: %q is out of range", errInvalidSince, v)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status_code", status)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
