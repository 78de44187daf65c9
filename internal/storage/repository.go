package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"

	_ "modernc.org/sqlite"
)

var (
	_ ledger.Store     = (*SQLiteRepository)(nil)
	_ ledger.SyncStore = (*SQLiteRepository)(nil)
)

// SQLiteRepository is the SQLite ledger backend. Owner scoping is enforced by
// explicit owner predicates in every query.
type SQLiteRepository struct {
	ops
	db *sql.DB
}

// ops implements ledger.Tx over either the pool or a single transaction.
type ops struct {
	queries *Queries
	now     func() time.Time
}

// DSN builds the modernc connection string: foreign keys on, WAL, and
// immediate transactions so concurrent writers queue on BEGIN.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		ops: ops{queries: New(db), now: func() time.Time { return time.Now().UTC() }},
		db:  db,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn inside a database transaction. SQLite has no row-level
// security, so owner only labels the log line.
func (r *SQLiteRepository) WithTx(ctx context.Context, owner string, fn func(ledger.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("begin", "transaction", 0, err)
	}
	defer tx.Rollback()

	if err := fn(ops{queries: r.queries.WithTx(tx), now: r.now}); err != nil {
		slog.DebugContext(ctx, "Transaction rolled back", "owner", owner, "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return core.Persistence("commit", "transaction", 0, err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to core.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func (o ops) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	a, err := o.queries.GetAccount(ctx, owner, id)
	if err != nil {
		return core.Account{}, core.Persistence("get", "account", id, notFound(err))
	}
	return a, nil
}

func (o ops) GetCard(ctx context.Context, owner string, id int64) (core.Card, error) {
	c, err := o.queries.GetCard(ctx, owner, id)
	if err != nil {
		return core.Card{}, core.Persistence("get", "card", id, notFound(err))
	}
	return c, nil
}

func (o ops) GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error) {
	s, err := o.queries.GetStatement(ctx, owner, id)
	if err != nil {
		return core.Statement{}, core.Persistence("get", "statement", id, notFound(err))
	}
	return s, nil
}

func (o ops) GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error) {
	p, err := o.queries.GetPosting(ctx, owner, id)
	if err != nil {
		return core.Posting{}, core.Persistence("get", "posting", id, notFound(err))
	}
	return p, nil
}

func (o ops) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	items, err := o.queries.ListStatements(ctx, owner, cardID)
	if err != nil {
		return nil, core.Persistence("list", "statements", cardID, err)
	}
	return items, nil
}

func (o ops) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error) {
	s, err := o.queries.SummarizePostings(ctx, owner, accountID, from, to)
	if err != nil {
		return core.PostingSummary{}, core.Persistence("summarize", "postings", accountID, err)
	}
	return s, nil
}

func (o ops) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := o.queries.CreateAccount(ctx, a, o.now())
	if err != nil {
		return core.Account{}, core.Persistence("create", "account", 0, err)
	}
	return created, nil
}

func (o ops) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	created, err := o.queries.CreateCard(ctx, c, o.now())
	if err != nil {
		return core.Card{}, core.Persistence("create", "card", 0, err)
	}
	return created, nil
}

func (o ops) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	created, err := o.queries.CreateRule(ctx, r, o.now())
	if err != nil {
		return core.RecurringRule{}, core.Persistence("create", "recurring_rule", 0, err)
	}
	return created, nil
}

func (o ops) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	if err := p.Validate(); err != nil {
		return core.Posting{}, err
	}
	created, err := o.queries.InsertPosting(ctx, p, o.now())
	if err != nil {
		slog.ErrorContext(ctx, "Insert posting failed",
			"owner", p.Owner,
			"account_id", p.AccountID,
			"date", p.Date.String(),
			"amount_cents", p.Amount.Cents,
			"transfer_group", p.TransferGroup,
			"error", err)
		return core.Posting{}, core.Persistence("insert", "posting", 0, err)
	}
	return created, nil
}

// SoftDeletePosting marks a posting deleted. Deleting an already deleted
// posting is a no-op.
func (o ops) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error {
	n, err := o.queries.SoftDeletePosting(ctx, owner, id, at)
	if err != nil {
		return core.Persistence("delete", "posting", id, err)
	}
	if n == 0 {
		if _, err := o.GetPosting(ctx, owner, id); err != nil {
			return err
		}
	}
	return nil
}

func (o ops) UpsertStatement(ctx context.Context, s core.Statement) (core.Statement, error) {
	saved, err := o.queries.UpsertStatement(ctx, s, o.now())
	if err != nil {
		return core.Statement{}, core.Persistence("upsert", "statement", s.CardID, err)
	}
	return saved, nil
}

func (o ops) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error) {
	s, err := o.queries.ClaimStatement(ctx, owner, id, paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or no longer closed.
		if _, getErr := o.GetStatement(ctx, owner, id); getErr != nil {
			return core.Statement{}, getErr
		}
		return core.Statement{}, core.ErrAlreadyPaid
	}
	if err != nil {
		return core.Statement{}, core.Persistence("claim", "statement", id, err)
	}
	return s, nil
}

func (o ops) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	rules, err := o.queries.ListDueRules(ctx, today)
	if err != nil {
		return nil, core.Persistence("list", "due rules", 0, err)
	}
	return rules, nil
}

func (o ops) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error {
	n, err := o.queries.UpdateRuleNextDate(ctx, id, next, o.now())
	if err != nil {
		return core.Persistence("advance", "recurring_rule", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetPostingForSync loads a posting regardless of owner for the sync worker.
func (r *SQLiteRepository) GetPostingForSync(ctx context.Context, id int64) (core.Posting, error) {
	p, err := r.queries.GetPostingByID(ctx, id)
	if err != nil {
		return core.Posting{}, core.Persistence("get", "posting", id, notFound(err))
	}
	return p, nil
}

func (r *SQLiteRepository) IsPostingSynced(ctx context.Context, id int64) (bool, error) {
	status, err := r.queries.PostingSyncStatus(ctx, id)
	if err != nil {
		return false, core.Persistence("get sync status", "posting", id, notFound(err))
	}
	return status == "synced", nil
}

// ListUnsyncedPostings returns live postings not yet mirrored, oldest first.
func (r *SQLiteRepository) ListUnsyncedPostings(ctx context.Context, limit int) ([]core.Posting, error) {
	items, err := r.queries.ListUnsyncedPostings(ctx, limit)
	if err != nil {
		return nil, core.Persistence("list", "unsynced postings", 0, err)
	}
	return items, nil
}

func (r *SQLiteRepository) MarkPostingSynced(ctx context.Context, id int64) error {
	n, err := r.queries.MarkPostingSynced(ctx, id, r.now())
	if err != nil {
		return core.Persistence("mark synced", "posting", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Posting marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkPostingSyncError(ctx context.Context, id int64, reason string) error {
	n, err := r.queries.MarkPostingSyncError(ctx, id, reason)
	if err != nil {
		return core.Persistence("mark sync error", "posting", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.WarnContext(ctx, "Posting marked with sync error", "id", id, "reason", reason)
	return nil
}
