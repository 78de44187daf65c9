package memory

import (
	"context"
	"sort"
	"time"

	"fintrack/internal/core"
)

// view implements ledger.Tx over a state. The caller holds the store lock.
type view struct {
	st  *state
	now func() time.Time
}

func (v view) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	a, ok := v.st.accounts[id]
	if !ok || a.Owner != owner {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (v view) GetCard(ctx context.Context, owner string, id int64) (core.Card, error) {
	c, ok := v.st.cards[id]
	if !ok || c.Owner != owner {
		return core.Card{}, core.ErrNotFound
	}
	return c, nil
}

func (v view) GetStatement(ctx context.Context, owner string, id int64) (core.Statement, error) {
	s, ok := v.st.statements[id]
	if !ok || s.Owner != owner {
		return core.Statement{}, core.ErrNotFound
	}
	return s, nil
}

func (v view) GetPosting(ctx context.Context, owner string, id int64) (core.Posting, error) {
	p, ok := v.st.postings[id]
	if !ok || p.Owner != owner {
		return core.Posting{}, core.ErrNotFound
	}
	return p, nil
}

func (v view) ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error) {
	var out []core.Statement
	for _, s := range v.st.statements {
		if s.Owner == owner && s.CardID == cardID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CycleEnd.Equal(out[j].CycleEnd) {
			return out[i].CycleEnd.After(out[j].CycleEnd)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v view) SummarizePostings(ctx context.Context, owner string, accountID int64, from, to core.Date) (core.PostingSummary, error) {
	sum := core.PostingSummary{AccountID: accountID}
	for _, p := range v.st.postings {
		if p.Owner != owner || p.AccountID != accountID || p.DeletedAt != nil {
			continue
		}
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		if p.Amount.IsOutflow() {
			sum.Outflows.Cents += -p.Amount.Cents
		} else {
			sum.Inflows.Cents += p.Amount.Cents
		}
		sum.Count++
	}
	return sum, nil
}

func (v view) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.ID = v.st.nextID()
	v.st.accounts[a.ID] = a
	return a, nil
}

func (v view) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	if _, ok := v.st.accounts[c.AccountID]; !ok {
		return core.Card{}, core.Persistence("create", "card", 0, errForeignKey)
	}
	c.ID = v.st.nextID()
	v.st.cards[c.ID] = c
	return c, nil
}

func (v view) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if _, ok := v.st.accounts[r.AccountID]; !ok {
		return core.RecurringRule{}, core.Persistence("create", "recurring_rule", 0, errForeignKey)
	}
	r.AnchorDay = r.Anchor()
	r.ID = v.st.nextID()
	v.st.rules[r.ID] = r
	return r, nil
}

func (v view) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	if err := p.Validate(); err != nil {
		return core.Posting{}, err
	}
	if _, ok := v.st.accounts[p.AccountID]; !ok {
		return core.Posting{}, core.Persistence("insert", "posting", 0, errForeignKey)
	}
	p.ID = v.st.nextID()
	p.CreatedAt = v.now()
	p.DeletedAt = nil
	v.st.postings[p.ID] = p
	return p, nil
}

func (v view) SoftDeletePosting(ctx context.Context, owner string, id int64, at time.Time) error {
	p, err := v.GetPosting(ctx, owner, id)
	if err != nil {
		return err
	}
	if p.DeletedAt != nil {
		return nil
	}
	ts := at.UTC()
	p.DeletedAt = &ts
	v.st.postings[id] = p
	return nil
}

func (v view) UpsertStatement(ctx context.Context, s core.Statement) (core.Statement, error) {
	now := v.now()
	for id, existing := range v.st.statements {
		if existing.CardID == s.CardID && existing.CycleStart.Equal(s.CycleStart) && existing.CycleEnd.Equal(s.CycleEnd) {
			existing.AmountTotal = s.AmountTotal
			existing.DueDate = s.DueDate
			existing.UpdatedAt = now
			v.st.statements[id] = existing
			return existing, nil
		}
	}
	s.ID = v.st.nextID()
	s.Status = core.StatementClosed
	s.CreatedAt = now
	s.UpdatedAt = now
	s.PaidAt = nil
	v.st.statements[s.ID] = s
	return s, nil
}

func (v view) ClaimStatement(ctx context.Context, owner string, id int64, paidAt time.Time) (core.Statement, error) {
	s, err := v.GetStatement(ctx, owner, id)
	if err != nil {
		return core.Statement{}, err
	}
	if s.Status != core.StatementClosed {
		return core.Statement{}, core.ErrAlreadyPaid
	}
	ts := paidAt.UTC()
	s.Status = core.StatementPaid
	s.PaidAt = &ts
	s.UpdatedAt = ts
	v.st.statements[id] = s
	return s, nil
}

func (v view) ListDueRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	var out []core.RecurringRule
	for _, r := range v.st.rules {
		if r.IsDue(today) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDate.Equal(out[j].NextDate) {
			return out[i].NextDate.Before(out[j].NextDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v view) UpdateRuleNextDate(ctx context.Context, id int64, next core.Date) error {
	r, ok := v.st.rules[id]
	if !ok {
		return core.ErrNotFound
	}
	r.NextDate = next
	v.st.rules[id] = r
	return nil
}
