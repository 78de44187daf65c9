package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-03-05"` {
		t.Fatalf("marshal = %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-29"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 2, 29)) {
		t.Fatalf("unmarshal = %s", d)
	}
	if err := json.Unmarshal([]byte(`"29/02/2024"`), &d); err == nil {
		t.Fatal("expected error for bad layout")
	}
}

func TestDateText(t *testing.T) {
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("run", "today", NewDate(2099, 1, 1))
	if out := buf.String(); !strings.Contains(out, "today=2099-01-01") || strings.Contains(out, "T00:00:00Z") {
		t.Errorf("logged date = %q", out)
	}

	var d Date
	if err := d.UnmarshalText([]byte("2024-02-29")); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(NewDate(2024, 2, 29)) {
		t.Errorf("UnmarshalText = %s", d)
	}
	if err := d.UnmarshalText([]byte("2024-02-29T00:00:00Z")); err == nil {
		t.Error("expected error for RFC 3339 input")
	}
}

func TestDateOfTruncates(t *testing.T) {
	got := DateOf(time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC))
	if !got.Equal(NewDate(2024, 6, 1)) {
		t.Fatalf("DateOf = %s", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestPostingValidate(t *testing.T) {
	good := Posting{
		Owner:       "u1",
		AccountID:   1,
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: -100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Posting{
		{Owner: "", AccountID: 1, Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 1}},
		{Owner: "u1", AccountID: 0, Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 1}},
		{Owner: "u1", AccountID: 1, Date: Date{}, Description: "a", Amount: Money{Cents: 1}},
		{Owner: "u1", AccountID: 1, Date: NewDate(2025, 1, 1), Description: "", Amount: Money{Cents: 1}},
		{Owner: "u1", AccountID: 1, Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 0}},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCardValidate(t *testing.T) {
	tests := []struct {
		name    string
		card    Card
		wantErr error
	}{
		{"valid", Card{Owner: "u", AccountID: 1, ClosingDay: 5, DueDay: 12}, nil},
		{"closing day 29", Card{Owner: "u", AccountID: 1, ClosingDay: 29, DueDay: 12}, ErrInvalidClosingDay},
		{"closing day 0", Card{Owner: "u", AccountID: 1, ClosingDay: 0, DueDay: 12}, ErrInvalidClosingDay},
		{"due day 31", Card{Owner: "u", AccountID: 1, ClosingDay: 5, DueDay: 31}, ErrInvalidDueDay},
		{"negative limit", Card{Owner: "u", AccountID: 1, ClosingDay: 5, DueDay: 12, Limit: Money{Cents: -1}}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringRuleValidateAndAnchor(t *testing.T) {
	rule := RecurringRule{
		Owner:       "u1",
		AccountID:   1,
		Description: "Rent",
		Amount:      Money{Cents: -50000},
		Every:       Monthly,
		NextDate:    NewDate(2024, 1, 31),
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if rule.Anchor() != 31 {
		t.Fatalf("Anchor() = %d, want 31", rule.Anchor())
	}
	rule.AnchorDay = 15
	if rule.Anchor() != 15 {
		t.Fatalf("Anchor() = %d, want 15", rule.Anchor())
	}

	rule.Every = Frequency("daily")
	if err := rule.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestRecurringRuleIsDue(t *testing.T) {
	rule := RecurringRule{NextDate: NewDate(2024, 6, 1)}
	if !rule.IsDue(NewDate(2024, 6, 1)) {
		t.Error("rule should be due on its next date")
	}
	if !rule.IsDue(NewDate(2024, 6, 2)) {
		t.Error("overdue rule should be due")
	}
	if rule.IsDue(NewDate(2024, 5, 31)) {
		t.Error("future rule should not be due")
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Owner: "u", Name: "Visa", Type: AccountCredit, Currency: "EUR"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Currency = "eur"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	bad = good
	bad.Type = "loan"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestPersistenceError(t *testing.T) {
	base := errors.New("disk full")
	err := Persistence("insert", "posting", 7, base)
	if !IsPersistence(err) {
		t.Fatal("expected persistence error")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause")
	}
	if err.Error() != "insert posting 7: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Persistence("get", "card", 1, ErrNotFound) != ErrNotFound {
		t.Fatal("ErrNotFound should pass through")
	}
	if Persistence("get", "card", 1, nil) != nil {
		t.Fatal("nil should stay nil")
	}
}
