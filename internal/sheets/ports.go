// Package sheets defines the spreadsheet mirror of the ledger.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// PostingWriter appends one row per posting.
	PostingWriter interface {
		AppendPosting(ctx context.Context, p core.Posting) (rowRef string, err error)
	}

	// PostingRemover deletes the row mirroring a posting, if any.
	PostingRemover interface {
		RemovePosting(ctx context.Context, p core.Posting) error
	}

	Mirror interface {
		PostingWriter
		PostingRemover
	}
)

// Columns of a mirrored posting row.
const (
	ColDate = iota
	ColAccount
	ColDescription
	ColCategory
	ColAmount
	ColTransferGroup
	ColPostingID
	NumColumns
)

// Header is the first row of a ledger sheet.
var Header = []any{"Date", "Account", "Description", "Category", "Amount", "Transfer group", "Posting"}

// Row renders a posting in column order.
func Row(p core.Posting) []any {
	return []any{
		p.Date.String(),
		p.AccountID,
		p.Description,
		p.Category,
		p.Amount.String(),
		p.TransferGroup,
		p.ID,
	}
}

// ParseRow reads a row written by Row back into a posting. Owner, timestamps
// and the deletion mark are not mirrored.
func ParseRow(cells []any) (core.Posting, error) {
	if len(cells) < NumColumns {
		return core.Posting{}, fmt.Errorf("row has %d cells, want %d", len(cells), NumColumns)
	}
	str := func(i int) string { return strings.TrimSpace(fmt.Sprint(cells[i])) }

	date, err := core.ParseDate(str(ColDate))
	if err != nil {
		return core.Posting{}, err
	}
	account, err := strconv.ParseInt(str(ColAccount), 10, 64)
	if err != nil {
		return core.Posting{}, fmt.Errorf("account %q: %w", str(ColAccount), err)
	}
	cents, err := core.ParseSignedCents(str(ColAmount))
	if err != nil {
		return core.Posting{}, fmt.Errorf("amount %q: %w", str(ColAmount), err)
	}
	id, err := PostingIDOf(cells)
	if err != nil {
		return core.Posting{}, err
	}
	return core.Posting{
		ID:            id,
		AccountID:     account,
		Date:          date,
		Amount:        core.Money{Cents: cents},
		Description:   str(ColDescription),
		Category:      str(ColCategory),
		TransferGroup: str(ColTransferGroup),
	}, nil
}

// PostingIDOf returns the posting id stored in a row.
func PostingIDOf(cells []any) (int64, error) {
	if len(cells) <= ColPostingID {
		return 0, fmt.Errorf("row has no posting column")
	}
	raw := strings.TrimSpace(fmt.Sprint(cells[ColPostingID]))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("posting id %q: %w", raw, err)
	}
	return id, nil
}
