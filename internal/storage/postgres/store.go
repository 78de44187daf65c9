// Package postgres is the Postgres ledger backend. Every statement runs in a
// transaction whose app.owner_id setting drives the row-level security
// policies installed by the migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	_ ledger.Store     = (*Store)(nil)
	_ ledger.SyncStore = (*Store)(nil)
)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects, pings and migrates the database at databaseURL.
func Open(ctx context.Context, databaseURL string, pc PoolConfig) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = pc.MaxConns
	cfg.MinConns = pc.MinConns
	cfg.MaxConnLifetime = pc.MaxConnLifetime
	cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Connected to Postgres",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns)

	return NewWithPool(pool), nil
}

// NewWithPool wraps an existing pool; the schema must already be migrated.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx begins a transaction, scopes it to owner and runs fn.
func (s *Store) WithTx(ctx context.Context, owner string, fn func(ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return core.Persistence("begin", "transaction", 0, err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if err := setScope(ctx, tx, owner); err != nil {
		return core.Persistence("scope", "transaction", 0, err)
	}

	if err := fn(ops{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Persistence("commit", "transaction", 0, err)
	}
	return nil
}

func setScope(ctx context.Context, tx pgx.Tx, owner string) error {
	if owner == ledger.SystemScope {
		_, err := tx.Exec(ctx, `SELECT set_config('app.system', 'on', true)`)
		return err
	}
	_, err := tx.Exec(ctx, `SELECT set_config('app.owner_id', $1, true)`, owner)
	return err
}

// run executes fn in its own scoped transaction.
func (s *Store) run(ctx context.Context, owner string, fn func(ops) error) error {
	return s.WithTx(ctx, owner, func(tx ledger.Tx) error {
		return fn(tx.(ops))
	})
}

func (s *Store) GetAccount(ctx context.Context, owner string, id int64) (a core.Account, err error) {
	err = s.run(ctx, owner, func(o ops) error { a, err = o.GetAccount(ctx, owner, id); return err })
	return a, err
}

func (s *Store) GetCard(ctx context.Context, owner string, id int64) (c core.Card, err error) {
	err = s.run(ctx, owner, func(o ops) error { c, err = o.GetCard(ctx, owner, id); return err })
	return c, err
}

func (s *Store) GetStatement(ctx context.Context, owner string, id int64) (st core.Statement, err error) {
	err = s.run(ctx, owner, func(o ops) error { st, err = o.GetStatement(ctx, owner, id); return err })
	return st, err
}

func (s *Store) GetPosting(ctx context.Context, owner string, id int64) (p core.Posting, err error) {
	err = s.run(ctx, owner, func(o ops) error { p, err = o.GetPosting(ctx, owner, id); return err })
	return p, err
}

func (s *Store) ListStatements(ctx context.Context, owner string, cardID int64) (items []core.Statement, err error) {
	err = s.run(ctx, owner, func(o ops) error { items, err = o.ListStatements(ctx, owner, cardID); return err })
	return items, err
}

func (s *Store) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (sum core.PostingSummary, err error) {
	err = s.run(ctx, owner, func(o ops) error { sum, err = o.SummarizePostings(ctx, owner, accountID, from, to); return err })
	return sum, err
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (out core.Account, err error) {
	err = s.run(ctx, a.Owner, func(o ops) error { out, err = o.CreateAccount(ctx, a); return err })
	return out, err
}

func (s *Store) CreateCard(ctx context.Context, c core.Card) (out core.Card, err error) {
	err = s.run(ctx, c.Owner, func(o ops) error { out, err = o.CreateCard(ctx, c); return err })
	return out, err
}

func (s *Store) CreateRule(ctx context.Context, r core.RecurringRule) (out core.RecurringRule, err error) {
	err = s.run(ctx, r.Owner, func(o ops) error { out, err = o.CreateRule(ctx, r); return err })
	return out, err
}

func (s *Store) InsertPosting(ctx context.Context, p core.Posting) (out core.Posting, err error) {
	err = s.run(ctx, p.Owner, func(o ops) error { out, err = o.InsertPosting(ctx, p); return err })
	return out, err
}

func (s *Store) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error {
	return s.run(ctx, owner, func(o ops) error { return o.SoftDeletePosting(ctx, owner, id, at) })
}

func (s *Store) UpsertStatement(ctx context.Context, st core.Statement) (out core.Statement, err error) {
	err = s.run(ctx, st.Owner, func(o ops) error { out, err = o.UpsertStatement(ctx, st); return err })
	return out, err
}

func (s *Store) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (out core.Statement, err error) {
	err = s.run(ctx, owner, func(o ops) error { out, err = o.ClaimStatement(ctx, owner, id, paidAt); return err })
	return out, err
}

func (s *Store) ListDueRules(ctx context.Context, today core.Date) (rules []core.RecurringRule, err error) {
	err = s.run(ctx, ledger.SystemScope, func(o ops) error { rules, err = o.ListDueRules(ctx, today); return err })
	return rules, err
}

func (s *Store) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error {
	return s.run(ctx, ledger.SystemScope, func(o ops) error { return o.UpdateRuleNextDate(ctx, id, next) })
}

func (s *Store) GetPostingForSync(ctx context.Context, id int64) (p core.Posting, err error) {
	err = s.run(ctx, ledger.SystemScope, func(o ops) error {
		p, err = scanPosting(o.q.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id))
		return notFound(err)
	})
	if err != nil {
		return core.Posting{}, core.Persistence("get", "posting", id, err)
	}
	return p, nil
}

func (s *Store) IsPostingSynced(ctx context.Context, id int64) (synced bool, err error) {
	err = s.run(ctx, ledger.SystemScope, func(o ops) error {
		var status string
		if err := o.q.QueryRow(ctx, `SELECT sync_status FROM postings WHERE id = $1`, id).Scan(&status); err != nil {
			return notFound(err)
		}
		synced = status == "synced"
		return nil
	})
	if err != nil {
		return false, core.Persistence("get sync status", "posting", id, err)
	}
	return synced, nil
}

func (s *Store) ListUnsyncedPostings(ctx context.Context, limit int) (items []core.Posting, err error) {
	err = s.run(ctx, ledger.SystemScope, func(o ops) error {
		rows, err := o.q.Query(ctx, `SELECT `+postingColumns+` FROM postings
WHERE sync_status <> 'synced' AND deleted_at IS NULL
ORDER BY id
LIMIT $1`, limit)
		if err != nil {
			return err
		}
		items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Posting, error) {
			return scanPosting(row)
		})
		return err
	})
	if err != nil {
		return nil, core.Persistence("list", "unsynced postings", 0, err)
	}
	return items, nil
}

func (s *Store) MarkPostingSynced(ctx context.Context, id int64) error {
	return s.markSync(ctx, id, `UPDATE postings SET sync_status = 'synced', sync_error = '', synced_at = now() WHERE id = $1`)
}

func (s *Store) MarkPostingSyncError(ctx context.Context, id int64, reason string) error {
	return s.markSync(ctx, id, `UPDATE postings SET sync_status = 'error', sync_error = $2 WHERE id = $1`, reason)
}

func (s *Store) markSync(ctx context.Context, id int64, query string, extra ...any) error {
	return s.run(ctx, ledger.SystemScope, func(o ops) error {
		tag, err := o.q.Exec(ctx, query, append([]any{id}, extra...)...)
		if err != nil {
			return core.Persistence("mark sync", "posting", id, err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}
