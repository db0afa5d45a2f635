package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"simbank/internal/core"
)

func sampleTx(date string) (core.AccountRef, core.Transaction) {
	amt := decimal.RequireFromString("42.10")
	return core.AccountRef{UserID: "u1", Type: core.Checking}, core.Transaction{
		ID: "sim_abc", Merchant: "Kroger", Category: "Groceries",
		Amount: amt, Type: core.TypeForAmount(amt), Source: core.SourceScheduled,
		Date: date, Timestamp: time.Date(2025, 12, 31, 23, 15, 0, 0, time.UTC),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := loadCredentials(Config{CredentialsFile: path})
	if err != nil || !strings.Contains(string(got), "service_account") {
		t.Fatalf("file credentials: %q %v", got, err)
	}

	got, err = loadCredentials(Config{CredentialsJSON: `{"inline":true}`, CredentialsFile: path})
	if err != nil || string(got) != `{"inline":true}` {
		t.Fatalf("inline JSON should win: %q %v", got, err)
	}

	if _, err := loadCredentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"2024 Transactions", 2025, "2024 Transactions"},
		{"  Ledger ", 2026, "2026 Ledger"},
		{"", 2025, ""},
		{"12345", 2025, "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestA1RangeQuotes(t *testing.T) {
	if got := a1Range("2025 Bob's", "A:J"); got != "'2025 Bob''s'!A:J" {
		t.Errorf("a1Range = %q", got)
	}
}

func TestAppendTransaction(t *testing.T) {
	var gotBody map[string]any
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "missing valueInputOption", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"spreadsheetId":"sid","updates":{"updatedRange":"'2025 Transactions'!A7:J7","updatedRows":1}}`)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	c := NewWithService(svc, "sid", "")

	// The day-key decides the tab, not the UTC timestamp.
	ref, tx := sampleTx("2025-12-31")
	rowRef, err := c.AppendTransaction(context.Background(), ref, tx)
	if err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	if rowRef != "'2025 Transactions'!A7:J7" {
		t.Errorf("rowRef = %q", rowRef)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sid/values/") {
		t.Errorf("unexpected path %q", gotPath)
	}

	values, _ := gotBody["values"].([]any)
	if len(values) != 1 {
		t.Fatalf("unexpected body %v", gotBody)
	}
	row, _ := values[0].([]any)
	if len(row) != 10 || row[4] != "Kroger" || row[6] != "42.10" || row[9] != "sim_abc" {
		t.Errorf("unexpected row %v", row)
	}
}

func TestAppendTransaction_Validation(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetBase: DefaultSheetName}
	ref, tx := sampleTx("2025-12-31")
	tx.ID = ""
	if _, err := c.AppendTransaction(context.Background(), ref, tx); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, tx = sampleTx("2025-12-31")
	if _, err := c.AppendTransaction(context.Background(), ref, tx); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}
