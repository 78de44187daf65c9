package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the few Sheets v4 endpoints the client uses.
type fakeSheets struct {
	mu        sync.Mutex
	appended  [][]any
	appendTo  string
	column    [][]any
	deleted   []int64
	metaCalls int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &vr)
		f.appended = append(f.appended, vr.Values...)
		f.appendTo = path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "'2024 Ledger'!A5:G5"},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		for _, rq := range req.Requests {
			if rq.DeleteDimension != nil {
				f.deleted = append(f.deleted, rq.DeleteDimension.Range.StartIndex)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.column})
	case r.Method == http.MethodGet:
		f.metaCalls++
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":99,"title":"2024 Ledger"}}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return newWithService(svc, "sheet-1", "Ledger")
}

func testPosting() core.Posting {
	return core.Posting{
		ID:            12,
		Owner:         "alice",
		AccountID:     3,
		Date:          core.NewDate(2024, 3, 12),
		Amount:        core.Money{Cents: 15000},
		Description:   "Card payment Visa",
		Category:      "card-payment",
		TransferGroup: "7d1c",
	}
}

func TestClient_AppendPosting(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendPosting(context.Background(), testPosting())
	if err != nil {
		t.Fatalf("AppendPosting() error = %v", err)
	}
	if ref != "'2024 Ledger'!A5:G5" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(fake.appendTo, "2024 Ledger") {
		t.Errorf("appended to %q, want the 2024 sheet", fake.appendTo)
	}
	if len(fake.appended) != 1 {
		t.Fatalf("appended %d rows", len(fake.appended))
	}
	row := fake.appended[0]
	if row[0] != "2024-03-12" || row[4] != "150.00" || row[5] != "7d1c" {
		t.Errorf("row = %v", row)
	}
}

func TestClient_AppendPosting_Invalid(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	p := testPosting()
	p.Description = ""
	if _, err := c.AppendPosting(context.Background(), p); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("AppendPosting() error = %v, want ErrEmptyDescription", err)
	}

	if _, err := c.AppendPosting(context.Background(), testPosting()); err == nil {
		t.Fatal("AppendPosting() without service should fail")
	}
}

func TestClient_RemovePosting(t *testing.T) {
	fake := &fakeSheets{column: [][]any{{"Posting"}, {"11"}, {"12"}, {"13"}}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	if err := c.RemovePosting(ctx, testPosting()); err != nil {
		t.Fatalf("RemovePosting() error = %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != 2 {
		t.Errorf("deleted = %v, want [2]", fake.deleted)
	}

	// Second removal reuses the cached sheet id.
	if err := c.RemovePosting(ctx, testPosting()); err != nil {
		t.Fatal(err)
	}
	if fake.metaCalls != 1 {
		t.Errorf("metadata fetched %d times, want 1", fake.metaCalls)
	}
}

func TestClient_RemovePosting_Missing(t *testing.T) {
	fake := &fakeSheets{column: [][]any{{"Posting"}, {"11"}}}
	c := newTestClient(t, fake)

	if err := c.RemovePosting(context.Background(), testPosting()); err != nil {
		t.Fatalf("RemovePosting() error = %v", err)
	}
	if len(fake.deleted) != 0 {
		t.Errorf("deleted = %v, want none", fake.deleted)
	}
}

func TestSheetIDCacheExpiry(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	c.cacheValidDuration = time.Millisecond
	ctx := context.Background()

	if _, err := c.sheetID(ctx, "2024 Ledger"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.sheetID(ctx, "2024 Ledger"); err != nil {
		t.Fatal(err)
	}
	if fake.metaCalls != 2 {
		t.Errorf("metadata fetched %d times, want 2", fake.metaCalls)
	}

	if _, err := c.sheetID(ctx, "1999 Ledger"); err == nil {
		t.Error("sheetID() should fail for an unknown sheet")
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"Posting"}, {}, {"7"}, {" 12 "}}
	if got := findRow(values, 12); got != 3 {
		t.Errorf("findRow(12) = %d, want 3", got)
	}
	if got := findRow(values, 8); got != -1 {
		t.Errorf("findRow(8) = %d, want -1", got)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("New() error = %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	got, err := loadCredentials(Options{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/nope"})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Errorf("inline: %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"k":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = loadCredentials(Options{CredentialsFile: path})
	if err != nil || string(got) != `{"k":1}` {
		t.Errorf("file: %q, %v", got, err)
	}

	if _, err := loadCredentials(Options{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("missing file should fail")
	}

	if _, err := loadCredentials(Options{}); err == nil {
		t.Error("no credentials should fail")
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	if got, err := loadCredentials(Options{}); err != nil || string(got) != `{"k":1}` {
		t.Errorf("adc: %q, %v", got, err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"", 2023, ""},
		{"Card Ledger", 2022, "2022 Card Ledger"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}
