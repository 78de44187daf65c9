package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Weekly  Frequency = "weekly"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCash       AccountType = "cash"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
)

const (
	StatementClosed StatementStatus = "closed"
	StatementPaid   StatementStatus = "paid"
)

const dateLayout = "2006-01-02"

type (
	Frequency       string
	AccountType     string
	StatementStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID       int64
		Owner    string
		Name     string
		Type     AccountType
		Currency string
		Archived bool
	}

	// Posting is a single signed ledger entry. Negative amounts are outflows.
	Posting struct {
		ID            int64
		Owner         string
		AccountID     int64
		Date          Date
		Amount        Money
		Description   string
		Category      string // optional
		TransferGroup string // optional, correlates paired postings
		CreatedAt     time.Time
		DeletedAt     *time.Time
	}

	Card struct {
		ID         int64
		Owner      string
		AccountID  int64
		Name       string
		ClosingDay int
		DueDay     int
		Limit      Money
		Archived   bool
	}

	Statement struct {
		ID          int64
		Owner       string
		CardID      int64
		CycleStart  Date
		CycleEnd    Date
		DueDate     Date
		Status      StatementStatus
		AmountTotal Money
		CreatedAt   time.Time
		UpdatedAt   time.Time
		PaidAt      *time.Time
	}

	RecurringRule struct {
		ID          int64
		Owner       string
		AccountID   int64
		Category    string
		Description string
		Amount      Money
		Every       Frequency
		NextDate    Date
		AnchorDay   int // day of month the rule is pinned to; 0 means NextDate's day
		AutoPost    bool
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidAccount   = errors.New("invalid account type")
	ErrZeroAmount       = errors.New("amount cannot be zero")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location and returns it as a UTC Date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalText keeps the YYYY-MM-DD form in text encoders such as slog's
// handlers instead of the embedded time's RFC 3339.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsOutflow reports whether the amount leaves the account.
func (m Money) IsOutflow() bool { return m.Cents < 0 }

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (t AccountType) IsValid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCash, AccountCredit, AccountInvestment:
		return true
	}
	return false
}

func (f Frequency) IsValid() bool {
	switch f {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("empty account name")
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccount
	}
	if len(a.Currency) != 3 || strings.ToUpper(a.Currency) != a.Currency {
		return ErrInvalidCurrency
	}
	return nil
}

func (p Posting) Validate() error {
	if strings.TrimSpace(p.Owner) == "" {
		return ErrEmptyOwner
	}
	if p.AccountID <= 0 {
		return errors.New("posting requires an account")
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.Amount.Cents == 0 {
		return ErrZeroAmount
	}
	if len(strings.TrimSpace(p.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(p.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return ErrEmptyOwner
	}
	if c.AccountID <= 0 {
		return errors.New("card requires a linked account")
	}
	if c.ClosingDay < 1 || c.ClosingDay > MaxCycleDay {
		return ErrInvalidClosingDay
	}
	if c.DueDay < 1 || c.DueDay > MaxCycleDay {
		return ErrInvalidDueDay
	}
	if c.Limit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (re RecurringRule) Validate() error {
	if strings.TrimSpace(re.Owner) == "" {
		return ErrEmptyOwner
	}
	if re.AccountID <= 0 {
		return errors.New("rule requires an account")
	}
	if err := re.NextDate.Validate(); err != nil {
		return errors.New("invalid next date: " + err.Error())
	}
	if !re.Every.IsValid() {
		return ErrInvalidFrequency
	}
	if re.AnchorDay < 0 || re.AnchorDay > 31 {
		return ErrInvalidDay
	}
	if len(strings.TrimSpace(re.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(re.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if re.Amount.Cents == 0 {
		return ErrZeroAmount
	}
	return nil
}

// Anchor returns the day of month the rule advances on.
func (re RecurringRule) Anchor() int {
	if re.AnchorDay > 0 {
		return re.AnchorDay
	}
	return re.NextDate.Day()
}

// IsDue reports whether the rule should be processed on today.
func (re RecurringRule) IsDue(today Date) bool {
	return !re.NextDate.After(today)
}

// Includes reports whether d falls inside the statement's cycle, bounds inclusive.
func (s Statement) Includes(d Date) bool {
	return !d.Before(s.CycleStart) && !d.After(s.CycleEnd)
}

func (s Statement) IsPaid() bool { return s.Status == StatementPaid }
