package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// ErrNotCreditAccount is returned when a card is linked to a non-credit account.
var ErrNotCreditAccount = errors.New("card account must be of type credit")

// AccountService sets up the entities the engine and poster operate on.
type AccountService struct {
	store ledger.Store
}

func NewAccountService(store ledger.Store) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) OpenAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	saved, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account opened", "account_id", saved.ID, "owner", saved.Owner, "type", saved.Type)
	return saved, nil
}

// IssueCard creates a card on an existing credit account of the same owner.
func (s *AccountService) IssueCard(ctx context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	var saved core.Card
	err := s.store.WithTx(ctx, c.Owner, func(tx ledger.Tx) error {
		acc, err := tx.GetAccount(ctx, c.Owner, c.AccountID)
		if err != nil {
			return fmt.Errorf("resolve account %d: %w", c.AccountID, err)
		}
		if acc.Type != core.AccountCredit {
			return fmt.Errorf("account %d is %s: %w", acc.ID, acc.Type, ErrNotCreditAccount)
		}
		saved, err = tx.CreateCard(ctx, c)
		return err
	})
	if err != nil {
		return core.Card{}, err
	}
	slog.InfoContext(ctx, "Card issued",
		"card_id", saved.ID,
		"account_id", saved.AccountID,
		"closing_day", saved.ClosingDay,
		"due_day", saved.DueDay)
	return saved, nil
}

// AddRule creates a recurring rule on an account of the same owner.
func (s *AccountService) AddRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if _, err := GetCadence(r.Every); err != nil {
		return core.RecurringRule{}, err
	}
	var saved core.RecurringRule
	err := s.store.WithTx(ctx, r.Owner, func(tx ledger.Tx) error {
		if _, err := tx.GetAccount(ctx, r.Owner, r.AccountID); err != nil {
			return fmt.Errorf("resolve account %d: %w", r.AccountID, err)
		}
		var err error
		saved, err = tx.CreateRule(ctx, r)
		return err
	})
	if err != nil {
		return core.RecurringRule{}, err
	}
	slog.InfoContext(ctx, "Recurring rule added",
		"rule_id", saved.ID,
		"frequency", saved.Every,
		"next_date", saved.NextDate,
		"auto_post", saved.AutoPost)
	return saved, nil
}
