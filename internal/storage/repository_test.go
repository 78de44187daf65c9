package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fixture struct {
	checking core.Account
	credit   core.Account
	card     core.Card
}

func seed(t *testing.T, repo *SQLiteRepository, owner string) fixture {
	t.Helper()
	ctx := context.Background()
	checking, err := repo.CreateAccount(ctx, core.Account{Owner: owner, Name: "Checking", Type: core.AccountChecking, Currency: "EUR"})
	if err != nil {
		t.Fatalf("create checking: %v", err)
	}
	credit, err := repo.CreateAccount(ctx, core.Account{Owner: owner, Name: "Visa", Type: core.AccountCredit, Currency: "EUR"})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}
	card, err := repo.CreateCard(ctx, core.Card{Owner: owner, AccountID: credit.ID, Name: "Visa", ClosingDay: 5, DueDay: 12})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return fixture{checking: checking, credit: credit, card: card}
}

func post(t *testing.T, repo *SQLiteRepository, owner string, accountID int64, date core.Date, cents int64) core.Posting {
	t.Helper()
	p, err := repo.InsertPosting(context.Background(), core.Posting{
		Owner:       owner,
		AccountID:   accountID,
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Description: "test",
	})
	if err != nil {
		t.Fatalf("insert posting: %v", err)
	}
	return p
}

func TestSummarizePostingsBoundsAndSoftDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 2, 5), -999)  // previous cycle
	post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 2, 6), -1000) // first day
	post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 3, 5), -500)  // closing day
	post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 3, 6), -777)  // next cycle
	post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 2, 20), 200)  // refund
	deleted := post(t, repo, "alice", fx.credit.ID, core.NewDate(2024, 2, 21), -300)

	if err := repo.SoftDeletePosting(ctx, "alice", deleted.ID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	// idempotent
	if err := repo.SoftDeletePosting(ctx, "alice", deleted.ID, time.Now()); err != nil {
		t.Fatalf("second soft delete: %v", err)
	}

	sum, err := repo.SummarizePostings(ctx, "alice", fx.credit.ID, core.NewDate(2024, 2, 6), core.NewDate(2024, 3, 5))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Outflows.Cents != 1500 {
		t.Errorf("outflows = %d, want 1500", sum.Outflows.Cents)
	}
	if sum.Inflows.Cents != 200 {
		t.Errorf("inflows = %d, want 200", sum.Inflows.Cents)
	}
	if sum.Count != 3 {
		t.Errorf("count = %d, want 3", sum.Count)
	}

	got, err := repo.GetPosting(ctx, "alice", deleted.ID)
	if err != nil {
		t.Fatalf("get deleted posting: %v", err)
	}
	if got.DeletedAt == nil {
		t.Error("expected deleted_at to be set")
	}
}

func TestOwnerScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	if _, err := repo.GetCard(ctx, "mallory", fx.card.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetCard other owner = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetAccount(ctx, "mallory", fx.checking.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetAccount other owner = %v, want ErrNotFound", err)
	}
	if err := repo.SoftDeletePosting(ctx, "mallory", 12345, time.Now()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("SoftDeletePosting missing = %v, want ErrNotFound", err)
	}
}

func TestUpsertStatementIsKeyedByCycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	st := core.Statement{
		Owner:       "alice",
		CardID:      fx.card.ID,
		CycleStart:  core.NewDate(2024, 2, 6),
		CycleEnd:    core.NewDate(2024, 3, 5),
		DueDate:     core.NewDate(2024, 3, 12),
		AmountTotal: core.Money{Cents: 15000},
	}
	first, err := repo.UpsertStatement(ctx, st)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Status != core.StatementClosed {
		t.Fatalf("status = %s, want closed", first.Status)
	}

	st.AmountTotal = core.Money{Cents: 17500}
	second, err := repo.UpsertStatement(ctx, st)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	if second.AmountTotal.Cents != 17500 {
		t.Fatalf("amount = %d, want 17500", second.AmountTotal.Cents)
	}

	list, err := repo.ListStatements(ctx, "alice", fx.card.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one statement, got %d", len(list))
	}
}

func TestClaimStatement(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	st, err := repo.UpsertStatement(ctx, core.Statement{
		Owner:       "alice",
		CardID:      fx.card.ID,
		CycleStart:  core.NewDate(2024, 2, 6),
		CycleEnd:    core.NewDate(2024, 3, 5),
		DueDate:     core.NewDate(2024, 3, 12),
		AmountTotal: core.Money{Cents: 100},
	})
	if err != nil {
		t.Fatal(err)
	}

	paid, err := repo.ClaimStatement(ctx, "alice", st.ID, time.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !paid.IsPaid() || paid.PaidAt == nil {
		t.Fatalf("claimed statement not paid: %+v", paid)
	}

	if _, err := repo.ClaimStatement(ctx, "alice", st.ID, time.Now()); !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("second claim = %v, want ErrAlreadyPaid", err)
	}
	if _, err := repo.ClaimStatement(ctx, "bob", st.ID, time.Now()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("claim by other owner = %v, want ErrNotFound", err)
	}

	// Upserting a paid statement refreshes the total but keeps it paid.
	again, err := repo.UpsertStatement(ctx, core.Statement{
		Owner:       "alice",
		CardID:      fx.card.ID,
		CycleStart:  core.NewDate(2024, 2, 6),
		CycleEnd:    core.NewDate(2024, 3, 5),
		DueDate:     core.NewDate(2024, 3, 12),
		AmountTotal: core.Money{Cents: 300},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !again.IsPaid() {
		t.Fatalf("upsert reset paid status to %s", again.Status)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	boom := errors.New("boom")
	err := repo.WithTx(ctx, "alice", func(tx ledger.Tx) error {
		if _, err := tx.InsertPosting(ctx, core.Posting{
			Owner: "alice", AccountID: fx.checking.ID, Date: core.NewDate(2024, 1, 1),
			Amount: core.Money{Cents: -100}, Description: "rolled back",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx = %v, want boom", err)
	}

	sum, err := repo.SummarizePostings(ctx, "alice", fx.checking.ID, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 0 {
		t.Fatalf("rolled back posting is visible: %+v", sum)
	}
}

func TestDueRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	due, err := repo.CreateRule(ctx, core.RecurringRule{
		Owner: "alice", AccountID: fx.checking.ID, Description: "Rent",
		Amount: core.Money{Cents: -50000}, Every: core.Monthly, NextDate: core.NewDate(2024, 1, 31), AutoPost: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if due.AnchorDay != 31 {
		t.Fatalf("anchor day = %d, want 31", due.AnchorDay)
	}
	if _, err := repo.CreateRule(ctx, core.RecurringRule{
		Owner: "alice", AccountID: fx.checking.ID, Description: "Gym",
		Amount: core.Money{Cents: -3000}, Every: core.Monthly, NextDate: core.NewDate(2024, 3, 1),
	}); err != nil {
		t.Fatal(err)
	}

	rules, err := repo.ListDueRules(ctx, core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != due.ID {
		t.Fatalf("due rules = %+v", rules)
	}
	if !rules[0].AutoPost || rules[0].Every != core.Monthly {
		t.Fatalf("rule fields not round-tripped: %+v", rules[0])
	}

	if err := repo.UpdateRuleNextDate(ctx, due.ID, core.NewDate(2024, 2, 29)); err != nil {
		t.Fatal(err)
	}
	rules, err = repo.ListDueRules(ctx, core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no due rules after advance, got %d", len(rules))
	}
	if err := repo.UpdateRuleNextDate(ctx, 9999, core.NewDate(2024, 2, 29)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("advance missing rule = %v, want ErrNotFound", err)
	}
}

func TestSyncBookkeeping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fx := seed(t, repo, "alice")

	a := post(t, repo, "alice", fx.checking.ID, core.NewDate(2024, 1, 1), -100)
	b := post(t, repo, "alice", fx.checking.ID, core.NewDate(2024, 1, 2), -200)

	pending, err := repo.ListUnsyncedPostings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := repo.MarkPostingSynced(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkPostingSyncError(ctx, b.ID, "quota"); err != nil {
		t.Fatal(err)
	}

	pending, err = repo.ListUnsyncedPostings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("pending after sync = %+v", pending)
	}

	got, err := repo.GetPostingForSync(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "alice" || got.Amount.Cents != -200 {
		t.Fatalf("GetPostingForSync = %+v", got)
	}

	if synced, err := repo.IsPostingSynced(ctx, a.ID); err != nil || !synced {
		t.Fatalf("IsPostingSynced(a) = %v, %v", synced, err)
	}
	if synced, err := repo.IsPostingSynced(ctx, b.ID); err != nil || synced {
		t.Fatalf("IsPostingSynced(b) = %v, %v", synced, err)
	}
	if _, err := repo.IsPostingSynced(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("IsPostingSynced(missing) = %v, want ErrNotFound", err)
	}
}

func TestInsertPostingValidates(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.InsertPosting(context.Background(), core.Posting{Owner: "alice", AccountID: 1, Date: core.NewDate(2024, 1, 1), Description: "x"})
	if !errors.Is(err, core.ErrZeroAmount) {
		t.Fatalf("InsertPosting zero amount = %v, want ErrZeroAmount", err)
	}
}
