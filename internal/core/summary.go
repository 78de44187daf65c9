package core

// Payment is the outcome of settling a statement: the statement in its paid
// state plus the balanced pair of postings that settled it.
type Payment struct {
	Statement     Statement
	Debit         Posting // on the paying account, negative
	Credit        Posting // on the card's account, positive
	TransferGroup string
}

// Net returns the signed sum of the two postings; zero for a balanced payment.
func (p Payment) Net() Money {
	return Money{Cents: p.Debit.Amount.Cents + p.Credit.Amount.Cents}
}

// PostingSummary aggregates postings for one account over a period.
type PostingSummary struct {
	AccountID int64
	Outflows  Money // magnitude
	Inflows   Money
	Count     int
}

// RunSummary reports a single recurrence poster pass.
type RunSummary struct {
	Processed int // rules whose next date advanced
	Created   int // postings inserted
	Failed    int // rules skipped after an error
	Checked   int // due rules found
}
