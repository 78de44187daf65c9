package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/metrics"
)

// PaymentCategory tags the postings created by a statement payment.
const PaymentCategory = "card-payment"

// StatementEngine turns card activity into statements and settles them.
type StatementEngine struct {
	store    ledger.Store
	postings *PostingService
	group    singleflight.Group

	now        func() time.Time
	newGroupID func() string
}

func NewStatementEngine(store ledger.Store, postings *PostingService) *StatementEngine {
	return &StatementEngine{
		store:      store,
		postings:   postings,
		now:        func() time.Time { return time.Now().UTC() },
		newGroupID: uuid.NewString,
	}
}

// GenerateStatement computes the most recently closed cycle of a card as of
// asOf and stores its statement. Repeated calls for the same cycle update the
// total and keep the status, so a paid statement stays paid.
func (e *StatementEngine) GenerateStatement(ctx context.Context, owner string, cardID int64, asOf core.Date) (core.Statement, error) {
	key := owner + "/" + strconv.FormatInt(cardID, 10) + "/" + asOf.String()
	// The flight outlives any single caller; each caller waits on its own ctx.
	flight := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return e.generate(flight, owner, cardID, asOf)
	})
	select {
	case <-ctx.Done():
		return core.Statement{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Statement{}, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "Statement generation shared", "card_id", cardID, "as_of", asOf)
		}
		return res.Val.(core.Statement), nil
	}
}

func (e *StatementEngine) generate(ctx context.Context, owner string, cardID int64, asOf core.Date) (core.Statement, error) {
	var (
		saved    core.Statement
		previous core.Money
		existed  bool
	)
	err := e.store.WithTx(ctx, owner, func(tx ledger.Tx) error {
		card, err := tx.GetCard(ctx, owner, cardID)
		if err != nil {
			return fmt.Errorf("resolve card %d: %w", cardID, err)
		}
		cycle, err := core.ComputeCycle(card.ClosingDay, asOf)
		if err != nil {
			return err
		}
		due, err := core.DueDate(cycle, card.DueDay)
		if err != nil {
			return err
		}

		sum, err := tx.SummarizePostings(ctx, owner, card.AccountID, cycle.Start, cycle.End)
		if err != nil {
			return fmt.Errorf("summarize cycle %s: %w", cycle, err)
		}

		prev, ok, err := findStatement(ctx, tx, owner, cardID, cycle)
		if err != nil {
			return fmt.Errorf("load statements of card %d: %w", cardID, err)
		}
		if ok {
			previous, existed = prev.AmountTotal, true
		}

		saved, err = tx.UpsertStatement(ctx, core.Statement{
			Owner:       owner,
			CardID:      cardID,
			CycleStart:  cycle.Start,
			CycleEnd:    cycle.End,
			DueDate:     due,
			Status:      core.StatementClosed,
			AmountTotal: sum.Outflows,
		})
		if err != nil {
			return fmt.Errorf("save statement for cycle %s: %w", cycle, err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to generate statement",
			"owner", owner, "card_id", cardID, "as_of", asOf, "error", err)
		return core.Statement{}, err
	}

	if saved.IsPaid() && existed && previous != saved.AmountTotal {
		slog.WarnContext(ctx, "Total of a paid statement changed",
			"statement_id", saved.ID,
			"previous_cents", previous.Cents,
			"amount_cents", saved.AmountTotal.Cents)
	}
	metrics.StatementsGenerated.Inc()
	slog.InfoContext(ctx, "Statement generated",
		"statement_id", saved.ID,
		"card_id", cardID,
		"cycle_start", saved.CycleStart,
		"cycle_end", saved.CycleEnd,
		"amount_cents", saved.AmountTotal.Cents,
		"status", saved.Status)
	return saved, nil
}

// findStatement looks up the stored statement of a cycle, if any.
func findStatement(ctx context.Context, tx ledger.Tx, owner string, cardID int64, cycle core.Cycle) (core.Statement, bool, error) {
	list, err := tx.ListStatements(ctx, owner, cardID)
	if err != nil {
		return core.Statement{}, false, err
	}
	for _, s := range list {
		if s.CycleStart.Equal(cycle.Start) && s.CycleEnd.Equal(cycle.End) {
			return s, true, nil
		}
	}
	return core.Statement{}, false, nil
}

// PayStatement settles a closed statement from payFromAccountID. The claim
// and both postings commit together or not at all.
func (e *StatementEngine) PayStatement(ctx context.Context, owner string, statementID, payFromAccountID int64) (core.Payment, error) {
	var pay core.Payment
	err := e.store.WithTx(ctx, owner, func(tx ledger.Tx) error {
		st, err := tx.GetStatement(ctx, owner, statementID)
		if err != nil {
			return fmt.Errorf("resolve statement %d: %w", statementID, err)
		}
		card, err := tx.GetCard(ctx, owner, st.CardID)
		if err != nil {
			return fmt.Errorf("resolve card %d: %w", st.CardID, err)
		}
		payer, err := tx.GetAccount(ctx, owner, payFromAccountID)
		if err != nil {
			return fmt.Errorf("resolve account %d: %w", payFromAccountID, err)
		}
		if payer.Archived {
			return fmt.Errorf("account %d is archived: %w", payer.ID, core.ErrNotFound)
		}
		if payer.ID == card.AccountID {
			return core.ErrSameAccount
		}
		if st.AmountTotal.Cents <= 0 {
			return fmt.Errorf("statement %d total %s: %w", st.ID, st.AmountTotal, core.ErrInvalidAmount)
		}

		claimed, err := tx.ClaimStatement(ctx, owner, st.ID, e.now())
		if err != nil {
			return fmt.Errorf("claim statement %d: %w", st.ID, err)
		}

		group := e.newGroupID()
		desc := paymentDescription(card, core.Cycle{Start: st.CycleStart, End: st.CycleEnd})

		debit, err := tx.InsertPosting(ctx, core.Posting{
			Owner:         owner,
			AccountID:     payer.ID,
			Date:          st.DueDate,
			Amount:        st.AmountTotal.Neg(),
			Description:   desc,
			Category:      PaymentCategory,
			TransferGroup: group,
		})
		if err != nil {
			return fmt.Errorf("insert debit posting: %w", err)
		}
		credit, err := tx.InsertPosting(ctx, core.Posting{
			Owner:         owner,
			AccountID:     card.AccountID,
			Date:          st.DueDate,
			Amount:        st.AmountTotal,
			Description:   desc,
			Category:      PaymentCategory,
			TransferGroup: group,
		})
		if err != nil {
			return fmt.Errorf("insert credit posting: %w", err)
		}

		pay = core.Payment{Statement: claimed, Debit: debit, Credit: credit, TransferGroup: group}
		return nil
	})
	metrics.StatementPayments.WithLabelValues(paymentResult(err)).Inc()
	if err != nil {
		if errors.Is(err, core.ErrAlreadyPaid) {
			slog.WarnContext(ctx, "Statement already paid", "statement_id", statementID, "owner", owner)
		} else {
			slog.ErrorContext(ctx, "Failed to pay statement",
				"statement_id", statementID,
				"pay_from_account_id", payFromAccountID,
				"owner", owner,
				"error", err)
		}
		return core.Payment{}, err
	}

	slog.InfoContext(ctx, "Statement paid",
		"statement_id", pay.Statement.ID,
		"amount_cents", pay.Credit.Amount.Cents,
		"transfer_group", pay.TransferGroup)

	if e.postings != nil {
		e.postings.announcePayment(ctx, pay)
	}
	return pay, nil
}

func paymentDescription(card core.Card, cycle core.Cycle) string {
	name := card.Name
	if name == "" {
		name = "card " + strconv.FormatInt(card.ID, 10)
	}
	return "Card payment " + name + " " + cycle.String()
}

// ListStatements returns the statements of a card, newest cycle first.
func (e *StatementEngine) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	if _, err := e.store.GetCard(ctx, owner, cardID); err != nil {
		return nil, fmt.Errorf("resolve card %d: %w", cardID, err)
	}
	list, err := e.store.ListStatements(ctx, owner, cardID)
	if err != nil {
		return nil, fmt.Errorf("list statements of card %d: %w", cardID, err)
	}
	return list, nil
}

func paymentResult(err error) string {
	if errors.Is(err, core.ErrAlreadyPaid) {
		return "already_paid"
	}
	return metrics.Result(err)
}
