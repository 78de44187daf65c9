package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fintrack/internal/core"
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ops implements ledger.Tx on a scoped pgx transaction.
type ops struct {
	q querier
}

// Postgres error codes the store reports distinctly.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// describe adds the constraint name to unique and foreign key violations.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("duplicate key (%s): %w", pgErr.ConstraintName, err)
		case foreignKeyViolation:
			return fmt.Errorf("missing reference (%s): %w", pgErr.ConstraintName, err)
		}
	}
	return err
}

const accountColumns = `id, owner, name, type, currency, archived`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a   core.Account
		typ string
	)
	if err := row.Scan(&a.ID, &a.Owner, &a.Name, &typ, &a.Currency, &a.Archived); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func (o ops) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	a, err := scanAccount(o.q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND owner = $2`, id, owner))
	if err != nil {
		return core.Account{}, core.Persistence("get", "account", id, notFound(err))
	}
	return a, nil
}

func (o ops) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := scanAccount(o.q.QueryRow(ctx,
		`INSERT INTO accounts (owner, name, type, currency, archived)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+accountColumns,
		a.Owner, a.Name, string(a.Type), a.Currency, a.Archived))
	if err != nil {
		return core.Account{}, core.Persistence("create", "account", 0, describe(err))
	}
	return created, nil
}

const cardColumns = `id, owner, account_id, name, closing_day, due_day, limit_cents, archived`

func scanCard(row rowScanner) (core.Card, error) {
	var c core.Card
	if err := row.Scan(&c.ID, &c.Owner, &c.AccountID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Limit.Cents, &c.Archived); err != nil {
		return core.Card{}, err
	}
	return c, nil
}

func (o ops) GetCard(ctx context.Context, owner string, id int64) (core.Card, error) {
	c, err := scanCard(o.q.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1 AND owner = $2`, id, owner))
	if err != nil {
		return core.Card{}, core.Persistence("get", "card", id, notFound(err))
	}
	return c, nil
}

func (o ops) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	created, err := scanCard(o.q.QueryRow(ctx,
		`INSERT INTO cards (owner, account_id, name, closing_day, due_day, limit_cents, archived)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+cardColumns,
		c.Owner, c.AccountID, c.Name, c.ClosingDay, c.DueDay, c.Limit.Cents, c.Archived))
	if err != nil {
		return core.Card{}, core.Persistence("create", "card", 0, describe(err))
	}
	return created, nil
}

const postingColumns = `id, owner, account_id, date, amount_cents, description, category, transfer_group, created_at, deleted_at`

func scanPosting(row rowScanner) (core.Posting, error) {
	var (
		p    core.Posting
		date time.Time
	)
	if err := row.Scan(&p.ID, &p.Owner, &p.AccountID, &date, &p.Amount.Cents,
		&p.Description, &p.Category, &p.TransferGroup, &p.CreatedAt, &p.DeletedAt); err != nil {
		return core.Posting{}, err
	}
	p.Date = core.DateOf(date)
	return p, nil
}

func (o ops) GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error) {
	p, err := scanPosting(o.q.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1 AND owner = $2`, id, owner))
	if err != nil {
		return core.Posting{}, core.Persistence("get", "posting", id, notFound(err))
	}
	return p, nil
}

func (o ops) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	if err := p.Validate(); err != nil {
		return core.Posting{}, err
	}
	created, err := scanPosting(o.q.QueryRow(ctx,
		`INSERT INTO postings (owner, account_id, date, amount_cents, description, category, transfer_group)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+postingColumns,
		p.Owner, p.AccountID, p.Date.Time, p.Amount.Cents, p.Description, p.Category, p.TransferGroup))
	if err != nil {
		slog.ErrorContext(ctx, "Insert posting failed",
			"owner", p.Owner,
			"account_id", p.AccountID,
			"date", p.Date.String(),
			"amount_cents", p.Amount.Cents,
			"transfer_group", p.TransferGroup,
			"error", err)
		return core.Posting{}, core.Persistence("insert", "posting", 0, describe(err))
	}
	return created, nil
}

func (o ops) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error {
	tag, err := o.q.Exec(ctx,
		`UPDATE postings SET deleted_at = $1 WHERE id = $2 AND owner = $3 AND deleted_at IS NULL`,
		at.UTC(), id, owner)
	if err != nil {
		return core.Persistence("delete", "posting", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := o.GetPosting(ctx, owner, id); err != nil {
			return err
		}
	}
	return nil
}

func (o ops) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error) {
	sum := core.PostingSummary{AccountID: accountID}
	err := o.q.QueryRow(ctx, `SELECT
    COALESCE(SUM(-amount_cents) FILTER (WHERE amount_cents < 0), 0),
    COALESCE(SUM(amount_cents) FILTER (WHERE amount_cents > 0), 0),
    COUNT(*)
FROM postings
WHERE owner = $1 AND account_id = $2 AND date BETWEEN $3 AND $4 AND deleted_at IS NULL`,
		owner, accountID, from.Time, to.Time).Scan(&sum.Outflows.Cents, &sum.Inflows.Cents, &sum.Count)
	if err != nil {
		return core.PostingSummary{}, core.Persistence("summarize", "postings", accountID, err)
	}
	return sum, nil
}

const statementColumns = `id, owner, card_id, cycle_start, cycle_end, due_date, status, amount_total_cents, created_at, updated_at, paid_at`

func scanStatement(row rowScanner) (core.Statement, error) {
	var (
		s               core.Statement
		start, end, due time.Time
		status          string
	)
	if err := row.Scan(&s.ID, &s.Owner, &s.CardID, &start, &end, &due, &status,
		&s.AmountTotal.Cents, &s.CreatedAt, &s.UpdatedAt, &s.PaidAt); err != nil {
		return core.Statement{}, err
	}
	s.CycleStart = core.DateOf(start)
	s.CycleEnd = core.DateOf(end)
	s.DueDate = core.DateOf(due)
	s.Status = core.StatementStatus(status)
	return s, nil
}

func (o ops) GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error) {
	s, err := scanStatement(o.q.QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = $1 AND owner = $2`, id, owner))
	if err != nil {
		return core.Statement{}, core.Persistence("get", "statement", id, notFound(err))
	}
	return s, nil
}

func (o ops) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	rows, err := o.q.Query(ctx, `SELECT `+statementColumns+` FROM statements
WHERE owner = $1 AND card_id = $2
ORDER BY cycle_end DESC, id DESC`, owner, cardID)
	if err != nil {
		return nil, core.Persistence("list", "statements", cardID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Statement, error) {
		return scanStatement(row)
	})
	if err != nil {
		return nil, core.Persistence("list", "statements", cardID, err)
	}
	return items, nil
}

func (o ops) UpsertStatement(ctx context.Context, s core.Statement) (core.Statement, error) {
	saved, err := scanStatement(o.q.QueryRow(ctx,
		`INSERT INTO statements (owner, card_id, cycle_start, cycle_end, due_date, status, amount_total_cents)
VALUES ($1, $2, $3, $4, $5, 'closed', $6)
ON CONFLICT (card_id, cycle_start, cycle_end) DO UPDATE SET
    amount_total_cents = EXCLUDED.amount_total_cents,
    due_date = EXCLUDED.due_date,
    updated_at = now()
RETURNING `+statementColumns,
		s.Owner, s.CardID, s.CycleStart.Time, s.CycleEnd.Time, s.DueDate.Time, s.AmountTotal.Cents))
	if err != nil {
		return core.Statement{}, core.Persistence("upsert", "statement", s.CardID, describe(err))
	}
	return saved, nil
}

func (o ops) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error) {
	s, err := scanStatement(o.q.QueryRow(ctx,
		`UPDATE statements SET status = 'paid', paid_at = $1, updated_at = $1
WHERE id = $2 AND owner = $3 AND status = 'closed'
RETURNING `+statementColumns,
		paidAt.UTC(), id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
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

const ruleColumns = `id, owner, account_id, category, description, amount_cents, frequency, next_date, anchor_day, auto_post`

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var (
		r         core.RecurringRule
		frequency string
		next      time.Time
	)
	if err := row.Scan(&r.ID, &r.Owner, &r.AccountID, &r.Category, &r.Description,
		&r.Amount.Cents, &frequency, &next, &r.AnchorDay, &r.AutoPost); err != nil {
		return core.RecurringRule{}, err
	}
	r.Every = core.Frequency(frequency)
	r.NextDate = core.DateOf(next)
	return r, nil
}

func (o ops) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	created, err := scanRule(o.q.QueryRow(ctx,
		`INSERT INTO recurring_rules (owner, account_id, category, description, amount_cents, frequency, next_date, anchor_day, auto_post)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+ruleColumns,
		r.Owner, r.AccountID, r.Category, r.Description, r.Amount.Cents, string(r.Every),
		r.NextDate.Time, r.Anchor(), r.AutoPost))
	if err != nil {
		return core.RecurringRule{}, core.Persistence("create", "recurring_rule", 0, describe(err))
	}
	return created, nil
}

func (o ops) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	rows, err := o.q.Query(ctx, `SELECT `+ruleColumns+` FROM recurring_rules
WHERE next_date <= $1
ORDER BY next_date, id`, today.Time)
	if err != nil {
		return nil, core.Persistence("list", "due rules", 0, err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.RecurringRule, error) {
		return scanRule(row)
	})
	if err != nil {
		return nil, core.Persistence("list", "due rules", 0, err)
	}
	return rules, nil
}

func (o ops) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error {
	tag, err := o.q.Exec(ctx,
		`UPDATE recurring_rules SET next_date = $1, updated_at = now() WHERE id = $2`, next.Time, id)
	if err != nil {
		return core.Persistence("advance", "recurring_rule", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
