package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	owner    string
	checking core.Account
	credit   core.Account
	card     core.Card
}

// newFixture seeds an owner with a checking account and a card closing on
// the 5th and due on the 12th.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	fx := fixture{store: store, owner: "alice"}

	var err error
	fx.checking, err = store.CreateAccount(ctx, core.Account{Owner: fx.owner, Name: "Checking", Type: core.AccountChecking, Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	fx.credit, err = store.CreateAccount(ctx, core.Account{Owner: fx.owner, Name: "Visa", Type: core.AccountCredit, Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	fx.card, err = store.CreateCard(ctx, core.Card{Owner: fx.owner, AccountID: fx.credit.ID, Name: "Visa", ClosingDay: 5, DueDay: 12})
	if err != nil {
		t.Fatal(err)
	}
	return fx
}

func post(t *testing.T, store ledger.Store, owner string, accountID int64, date core.Date, cents int64) core.Posting {
	t.Helper()
	p, err := store.InsertPosting(context.Background(), core.Posting{
		Owner:       owner,
		AccountID:   accountID,
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Description: "purchase",
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu      sync.Mutex
	created []core.Posting
	deleted []int64
	paid    []core.Statement
	groups  []string
	err     error
	closed  bool
}

func (r *recordingPublisher) PublishPostingCreated(_ context.Context, p core.Posting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p)
	return r.err
}

func (r *recordingPublisher) PublishPostingDeleted(_ context.Context, _ string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return r.err
}

func (r *recordingPublisher) PublishStatementPaid(_ context.Context, s core.Statement, group string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, s)
	r.groups = append(r.groups, group)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

var errInjected = errors.New("injected failure")

// faultyStore wraps a store and fails selected operations inside transactions.
type faultyStore struct {
	ledger.Store

	mu          sync.Mutex
	inserts     int
	failInsertN int   // fail the n-th InsertPosting (1-based); 0 disables
	failAccount int64 // fail inserts on this account; 0 disables
	failList    bool
	failListSt  bool // fail ListStatements inside transactions

	// entered, when set, receives once per transaction before it starts;
	// gate, when set, holds the transaction until closed.
	entered chan struct{}
	gate    chan struct{}
}

func (s *faultyStore) WithTx(ctx context.Context, owner string, fn func(ledger.Tx) error) error {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.Store.WithTx(ctx, owner, func(tx ledger.Tx) error {
		return fn(faultyTx{Tx: tx, s: s})
	})
}

func (s *faultyStore) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	if s.failList {
		return nil, errInjected
	}
	return s.Store.ListDueRules(ctx, today)
}

type faultyTx struct {
	ledger.Tx
	s *faultyStore
}

func (t faultyTx) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	t.s.mu.Lock()
	t.s.inserts++
	n := t.s.inserts
	t.s.mu.Unlock()
	if t.s.failInsertN > 0 && n == t.s.failInsertN {
		return core.Posting{}, errInjected
	}
	if t.s.failAccount != 0 && p.AccountID == t.s.failAccount {
		return core.Posting{}, errInjected
	}
	return t.Tx.InsertPosting(ctx, p)
}

func (t faultyTx) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	if t.s.failListSt {
		return nil, errInjected
	}
	return t.Tx.ListStatements(ctx, owner, cardID)
}

// livePostings returns non-deleted postings of an account.
func livePostings(store *memory.Store, accountID int64) []core.Posting {
	var out []core.Posting
	for _, p := range store.Postings() {
		if p.AccountID == accountID && p.DeletedAt == nil {
			out = append(out, p)
		}
	}
	return out
}
