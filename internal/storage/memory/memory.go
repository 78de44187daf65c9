// Package memory is an in-process ledger store used by tests, the CLI dry
// runs and the "memory" data backend.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	_ ledger.Store     = (*Store)(nil)
	_ ledger.SyncStore = (*Store)(nil)
)

var errForeignKey = errors.New("foreign key constraint failed")

type syncState struct {
	status string
	reason string
}

type state struct {
	seq        int64
	accounts   map[int64]core.Account
	cards      map[int64]core.Card
	postings   map[int64]core.Posting
	statements map[int64]core.Statement
	rules      map[int64]core.RecurringRule
	sync       map[int64]syncState
}

func newState() *state {
	return &state{
		accounts:   map[int64]core.Account{},
		cards:      map[int64]core.Card{},
		postings:   map[int64]core.Posting{},
		statements: map[int64]core.Statement{},
		rules:      map[int64]core.RecurringRule{},
		sync:       map[int64]syncState{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:        s.seq,
		accounts:   cloneMap(s.accounts),
		cards:      cloneMap(s.cards),
		postings:   cloneMap(s.postings),
		statements: cloneMap(s.statements),
		rules:      cloneMap(s.rules),
		sync:       cloneMap(s.sync),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store keeps the ledger in maps guarded by a mutex. Transactions work on a
// copy of the state that replaces the live one on commit.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) view() view {
	return view{st: s.st, now: s.now}
}

func (s *Store) WithTx(ctx context.Context, owner string, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(view{st: draft, now: s.now}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetAccount(ctx, owner, id)
}

func (s *Store) GetCard(ctx context.Context, owner string, id int64) (core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetCard(ctx, owner, id)
}

func (s *Store) GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetStatement(ctx, owner, id)
}

func (s *Store) GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetPosting(ctx, owner, id)
}

func (s *Store) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListStatements(ctx, owner, cardID)
}

func (s *Store) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SummarizePostings(ctx, owner, accountID, from, to)
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateAccount(ctx, a)
}

func (s *Store) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateCard(ctx, c)
}

func (s *Store) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateRule(ctx, r)
}

func (s *Store) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertPosting(ctx, p)
}

func (s *Store) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SoftDeletePosting(ctx, owner, id, at)
}

func (s *Store) UpsertStatement(ctx context.Context, st core.Statement) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpsertStatement(ctx, st)
}

func (s *Store) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ClaimStatement(ctx, owner, id, paidAt)
}

func (s *Store) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListDueRules(ctx, today)
}

func (s *Store) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateRuleNextDate(ctx, id, next)
}

func (s *Store) GetPostingForSync(ctx context.Context, id int64) (core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.postings[id]
	if !ok {
		return core.Posting{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) IsPostingSynced(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.postings[id]; !ok {
		return false, core.ErrNotFound
	}
	return s.st.sync[id].status == "synced", nil
}

func (s *Store) ListUnsyncedPostings(ctx context.Context, limit int) ([]core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Posting
	for id, p := range s.st.postings {
		if p.DeletedAt != nil || s.st.sync[id].status == "synced" {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkPostingSynced(ctx context.Context, id int64) error {
	return s.markSync(id, syncState{status: "synced"})
}

func (s *Store) MarkPostingSyncError(ctx context.Context, id int64, reason string) error {
	return s.markSync(id, syncState{status: "error", reason: reason})
}

func (s *Store) markSync(id int64, st syncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.postings[id]; !ok {
		return core.ErrNotFound
	}
	s.st.sync[id] = st
	return nil
}

// SyncStatus reports the mirror state of a posting ("pending" when never touched).
func (s *Store) SyncStatus(id int64) (status, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.sync[id]
	if !ok {
		return "pending", ""
	}
	return st.status, st.reason
}

// Postings returns every posting, deleted ones included, ordered by id.
func (s *Store) Postings() []core.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Posting, 0, len(s.st.postings))
	for _, p := range s.st.postings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
