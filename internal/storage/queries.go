package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const timeLayout = time.RFC3339Nano

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Accounts

const accountColumns = `id, owner, name, type, currency, archived`

const createAccount = `INSERT INTO accounts (owner, name, type, currency, archived, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND owner = ?`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a        core.Account
		typ      string
		archived int64
	)
	if err := row.Scan(&a.ID, &a.Owner, &a.Name, &typ, &a.Currency, &archived); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.Archived = archived != 0
	return a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account, now time.Time) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		a.Owner, a.Name, string(a.Type), a.Currency, boolToInt(a.Archived), formatTime(now))
	return scanAccount(row)
}

func (q *Queries) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id, owner))
}

// Cards

const cardColumns = `id, owner, account_id, name, closing_day, due_day, limit_cents, archived`

const createCard = `INSERT INTO cards (owner, account_id, name, closing_day, due_day, limit_cents, archived, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + cardColumns

const getCard = `SELECT ` + cardColumns + ` FROM cards WHERE id = ? AND owner = ?`

func scanCard(row rowScanner) (core.Card, error) {
	var (
		c        core.Card
		archived int64
	)
	if err := row.Scan(&c.ID, &c.Owner, &c.AccountID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Limit.Cents, &archived); err != nil {
		return core.Card{}, err
	}
	c.Archived = archived != 0
	return c, nil
}

func (q *Queries) CreateCard(ctx context.Context, c core.Card, now time.Time) (core.Card, error) {
	row := q.db.QueryRowContext(ctx, createCard,
		c.Owner, c.AccountID, c.Name, c.ClosingDay, c.DueDay, c.Limit.Cents, boolToInt(c.Archived), formatTime(now))
	return scanCard(row)
}

func (q *Queries) GetCard(ctx context.Context, owner string, id int64) (core.Card, error) {
	return scanCard(q.db.QueryRowContext(ctx, getCard, id, owner))
}

// Postings

const postingColumns = `id, owner, account_id, date, amount_cents, description, category, transfer_group, created_at, deleted_at`

const insertPosting = `INSERT INTO postings (owner, account_id, date, amount_cents, description, category, transfer_group, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + postingColumns

const getPosting = `SELECT ` + postingColumns + ` FROM postings WHERE id = ? AND owner = ?`

const getPostingByID = `SELECT ` + postingColumns + ` FROM postings WHERE id = ?`

const softDeletePosting = `UPDATE postings SET deleted_at = ?
WHERE id = ? AND owner = ? AND deleted_at IS NULL`

const summarizePostings = `SELECT
    COALESCE(SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
    COUNT(*)
FROM postings
WHERE owner = ? AND account_id = ? AND date >= ? AND date <= ? AND deleted_at IS NULL`

const listUnsyncedPostings = `SELECT ` + postingColumns + ` FROM postings
WHERE sync_status <> 'synced' AND deleted_at IS NULL
ORDER BY id
LIMIT ?`

const postingSyncStatus = `SELECT sync_status FROM postings WHERE id = ?`

const markPostingSynced = `UPDATE postings SET sync_status = 'synced', sync_error = '', synced_at = ? WHERE id = ?`

const markPostingSyncError = `UPDATE postings SET sync_status = 'error', sync_error = ? WHERE id = ?`

func scanPosting(row rowScanner) (core.Posting, error) {
	var (
		p         core.Posting
		date      string
		createdAt string
		deletedAt sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Owner, &p.AccountID, &date, &p.Amount.Cents,
		&p.Description, &p.Category, &p.TransferGroup, &createdAt, &deletedAt); err != nil {
		return core.Posting{}, err
	}
	var err error
	if p.Date, err = core.ParseDate(date); err != nil {
		return core.Posting{}, fmt.Errorf("posting %d date: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Posting{}, fmt.Errorf("posting %d created_at: %w", p.ID, err)
	}
	if p.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return core.Posting{}, fmt.Errorf("posting %d deleted_at: %w", p.ID, err)
	}
	return p, nil
}

func scanPostings(rows *sql.Rows) ([]core.Posting, error) {
	defer rows.Close()
	var items []core.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) InsertPosting(ctx context.Context, p core.Posting, now time.Time) (core.Posting, error) {
	row := q.db.QueryRowContext(ctx, insertPosting,
		p.Owner, p.AccountID, p.Date.String(), p.Amount.Cents, p.Description, p.Category, p.TransferGroup, formatTime(now))
	return scanPosting(row)
}

func (q *Queries) GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error) {
	return scanPosting(q.db.QueryRowContext(ctx, getPosting, id, owner))
}

func (q *Queries) GetPostingByID(ctx context.Context, id int64) (core.Posting, error) {
	return scanPosting(q.db.QueryRowContext(ctx, getPostingByID, id))
}

func (q *Queries) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeletePosting, formatTime(at), id, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error) {
	s := core.PostingSummary{AccountID: accountID}
	row := q.db.QueryRowContext(ctx, summarizePostings, owner, accountID, from.String(), to.String())
	if err := row.Scan(&s.Outflows.Cents, &s.Inflows.Cents, &s.Count); err != nil {
		return core.PostingSummary{}, err
	}
	return s, nil
}

func (q *Queries) ListUnsyncedPostings(ctx context.Context, limit int) ([]core.Posting, error) {
	rows, err := q.db.QueryContext(ctx, listUnsyncedPostings, limit)
	if err != nil {
		return nil, err
	}
	return scanPostings(rows)
}

func (q *Queries) PostingSyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := q.db.QueryRowContext(ctx, postingSyncStatus, id).Scan(&status)
	return status, err
}

func (q *Queries) MarkPostingSynced(ctx context.Context, id int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markPostingSynced, formatTime(at), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) MarkPostingSyncError(ctx context.Context, id int64, reason string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markPostingSyncError, reason, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Statements

const statementColumns = `id, owner, card_id, cycle_start, cycle_end, due_date, status, amount_total_cents, created_at, updated_at, paid_at`

const upsertStatement = `INSERT INTO statements (owner, card_id, cycle_start, cycle_end, due_date, status, amount_total_cents, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 'closed', ?, ?, ?)
ON CONFLICT (card_id, cycle_start, cycle_end) DO UPDATE SET
    amount_total_cents = excluded.amount_total_cents,
    due_date = excluded.due_date,
    updated_at = excluded.updated_at
RETURNING ` + statementColumns

const getStatement = `SELECT ` + statementColumns + ` FROM statements WHERE id = ? AND owner = ?`

const claimStatement = `UPDATE statements SET status = 'paid', paid_at = ?, updated_at = ?
WHERE id = ? AND owner = ? AND status = 'closed'
RETURNING ` + statementColumns

const listStatements = `SELECT ` + statementColumns + ` FROM statements
WHERE owner = ? AND card_id = ?
ORDER BY cycle_end DESC, id DESC`

func scanStatement(row rowScanner) (core.Statement, error) {
	var (
		s                       core.Statement
		start, end, due, status string
		createdAt, updatedAt    string
		paidAt                  sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Owner, &s.CardID, &start, &end, &due, &status,
		&s.AmountTotal.Cents, &createdAt, &updatedAt, &paidAt); err != nil {
		return core.Statement{}, err
	}
	s.Status = core.StatementStatus(status)
	var err error
	if s.CycleStart, err = core.ParseDate(start); err != nil {
		return core.Statement{}, err
	}
	if s.CycleEnd, err = core.ParseDate(end); err != nil {
		return core.Statement{}, err
	}
	if s.DueDate, err = core.ParseDate(due); err != nil {
		return core.Statement{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Statement{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Statement{}, err
	}
	if s.PaidAt, err = parseNullTime(paidAt); err != nil {
		return core.Statement{}, err
	}
	return s, nil
}

func (q *Queries) UpsertStatement(ctx context.Context, s core.Statement, now time.Time) (core.Statement, error) {
	row := q.db.QueryRowContext(ctx, upsertStatement,
		s.Owner, s.CardID, s.CycleStart.String(), s.CycleEnd.String(), s.DueDate.String(),
		s.AmountTotal.Cents, formatTime(now), formatTime(now))
	return scanStatement(row)
}

func (q *Queries) GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error) {
	return scanStatement(q.db.QueryRowContext(ctx, getStatement, id, owner))
}

func (q *Queries) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error) {
	ts := formatTime(paidAt)
	return scanStatement(q.db.QueryRowContext(ctx, claimStatement, ts, ts, id, owner))
}

func (q *Queries) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	rows, err := q.db.QueryContext(ctx, listStatements, owner, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Recurring rules

const ruleColumns = `id, owner, account_id, category, description, amount_cents, frequency, next_date, anchor_day, auto_post`

const createRule = `INSERT INTO recurring_rules (owner, account_id, category, description, amount_cents, frequency, next_date, anchor_day, auto_post, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + ruleColumns

const listDueRules = `SELECT ` + ruleColumns + ` FROM recurring_rules
WHERE next_date <= ?
ORDER BY next_date, id`

const updateRuleNextDate = `UPDATE recurring_rules SET next_date = ?, updated_at = ? WHERE id = ?`

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var (
		r         core.RecurringRule
		frequency string
		next      string
		autoPost  int64
	)
	if err := row.Scan(&r.ID, &r.Owner, &r.AccountID, &r.Category, &r.Description,
		&r.Amount.Cents, &frequency, &next, &r.AnchorDay, &autoPost); err != nil {
		return core.RecurringRule{}, err
	}
	r.Every = core.Frequency(frequency)
	r.AutoPost = autoPost != 0
	var err error
	if r.NextDate, err = core.ParseDate(next); err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d next_date: %w", r.ID, err)
	}
	return r, nil
}

func (q *Queries) CreateRule(ctx context.Context, r core.RecurringRule, now time.Time) (core.RecurringRule, error) {
	ts := formatTime(now)
	row := q.db.QueryRowContext(ctx, createRule,
		r.Owner, r.AccountID, r.Category, r.Description, r.Amount.Cents, string(r.Every),
		r.NextDate.String(), r.Anchor(), boolToInt(r.AutoPost), ts, ts)
	return scanRule(row)
}

func (q *Queries) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx, listDueRules, today.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRuleNextDate, next.String(), formatTime(now), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
