// Package ledger defines the storage ports shared by the statement engine,
// the recurrence poster and the ledger sync worker.
package ledger

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// SystemScope is the scope used by background jobs that act across owners.
const SystemScope = ""

// Reader resolves entities under an owner. Lookups that do not match the owner
// return core.ErrNotFound.
type Reader interface {
	GetAccount(ctx context.Context, owner string, id int64) (core.Account, error)
	GetCard(ctx context.Context, owner string, id int64) (core.Card, error)
	GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error)
	GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error)
	ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error)

	// SummarizePostings aggregates non-deleted postings of an account dated
	// within [from, to], bounds inclusive.
	SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error)
}

// Writer mutates ledger state.
type Writer interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	CreateCard(ctx context.Context, c core.Card) (core.Card, error)
	CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error)
	SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error

	// UpsertStatement inserts a closed statement for (card, cycle_start, cycle_end)
	// or, when one exists, updates its amount_total and due date only.
	UpsertStatement(ctx context.Context, s core.Statement) (core.Statement, error)

	// ClaimStatement moves a statement from closed to paid. It returns
	// core.ErrAlreadyPaid when the statement is not closed.
	ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error)
}

// RuleStore is the poster's view of recurring rules. It acts in system scope.
type RuleStore interface {
	ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error)
	UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	Reader
	Writer
	RuleStore
}

// Store is a ledger backend. Operations called directly on the store run in
// their own implicit transaction; WithTx groups several into one commit.
type Store interface {
	Tx

	// WithTx runs fn in a transaction scoped to owner (SystemScope for
	// background jobs). The transaction commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, owner string, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// SyncStore tracks which postings have been mirrored to the spreadsheet.
type SyncStore interface {
	GetPostingForSync(ctx context.Context, id int64) (core.Posting, error)
	IsPostingSynced(ctx context.Context, id int64) (bool, error)
	ListUnsyncedPostings(ctx context.Context, limit int) ([]core.Posting, error)
	MarkPostingSynced(ctx context.Context, id int64) error
	MarkPostingSyncError(ctx context.Context, id int64, reason string) error
}
