//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Integration tests require a real spreadsheet and a service account.
// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_AppendAndRemove(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := New(ctx, Options{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := core.Posting{
		ID:            time.Now().UnixNano() % 1_000_000_000,
		Owner:         "integration",
		AccountID:     1,
		Date:          core.DateOf(time.Now()),
		Amount:        core.Money{Cents: -1},
		Description:   "integration test row",
		TransferGroup: uuid.NewString(),
	}
	ref, err := c.AppendPosting(ctx, p)
	if err != nil {
		t.Fatalf("AppendPosting() error = %v", err)
	}
	t.Logf("appended %s", ref)

	if err := c.RemovePosting(ctx, p); err != nil {
		t.Fatalf("RemovePosting() error = %v", err)
	}
}
