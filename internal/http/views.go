package http

import (
	"time"

	"fintrack/internal/core"
)

type statementView struct {
	ID               int64      `json:"id"`
	CardID           int64      `json:"card_id"`
	CycleStart       core.Date  `json:"cycle_start"`
	CycleEnd         core.Date  `json:"cycle_end"`
	DueDate          core.Date  `json:"due_date"`
	Status           string     `json:"status"`
	AmountTotal      string     `json:"amount_total"`
	AmountTotalCents int64      `json:"amount_total_cents"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

func newStatementView(s core.Statement) statementView {
	return statementView{
		ID:               s.ID,
		CardID:           s.CardID,
		CycleStart:       s.CycleStart,
		CycleEnd:         s.CycleEnd,
		DueDate:          s.DueDate,
		Status:           string(s.Status),
		AmountTotal:      s.AmountTotal.String(),
		AmountTotalCents: s.AmountTotal.Cents,
		PaidAt:           s.PaidAt,
	}
}

type postingView struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	Date          core.Date `json:"date"`
	Amount        string    `json:"amount"`
	AmountCents   int64     `json:"amount_cents"`
	Description   string    `json:"description"`
	Category      string    `json:"category,omitempty"`
	TransferGroup string    `json:"transfer_group,omitempty"`
}

func newPostingView(p core.Posting) postingView {
	return postingView{
		ID:            p.ID,
		AccountID:     p.AccountID,
		Date:          p.Date,
		Amount:        p.Amount.String(),
		AmountCents:   p.Amount.Cents,
		Description:   p.Description,
		Category:      p.Category,
		TransferGroup: p.TransferGroup,
	}
}

type paymentView struct {
	Statement     statementView `json:"statement"`
	Debit         postingView   `json:"debit"`
	Credit        postingView   `json:"credit"`
	TransferGroup string        `json:"transfer_group"`
}

func newPaymentView(p core.Payment) paymentView {
	return paymentView{
		Statement:     newStatementView(p.Statement),
		Debit:         newPostingView(p.Debit),
		Credit:        newPostingView(p.Credit),
		TransferGroup: p.TransferGroup,
	}
}
