package services

import (
	"errors"
	"testing"

	"fintrack/internal/core"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name   string
		every  core.Frequency
		from   core.Date
		anchor int
		want   core.Date
	}{
		{"weekly", core.Weekly, core.NewDate(2024, 6, 1), 1, core.NewDate(2024, 6, 8)},
		{"weekly across year", core.Weekly, core.NewDate(2024, 12, 28), 28, core.NewDate(2025, 1, 4)},
		{"monthly plain", core.Monthly, core.NewDate(2024, 5, 15), 15, core.NewDate(2024, 6, 15)},
		{"monthly 31 into leap february", core.Monthly, core.NewDate(2024, 1, 31), 31, core.NewDate(2024, 2, 29)},
		{"monthly back to anchor", core.Monthly, core.NewDate(2024, 2, 29), 31, core.NewDate(2024, 3, 31)},
		{"monthly 31 into april", core.Monthly, core.NewDate(2024, 3, 31), 31, core.NewDate(2024, 4, 30)},
		{"monthly december", core.Monthly, core.NewDate(2024, 12, 10), 10, core.NewDate(2025, 1, 10)},
		{"monthly zero anchor uses day", core.Monthly, core.NewDate(2024, 5, 20), 0, core.NewDate(2024, 6, 20)},
		{"yearly leap day", core.Yearly, core.NewDate(2024, 2, 29), 29, core.NewDate(2025, 2, 28)},
		{"yearly stays clamped", core.Yearly, core.NewDate(2025, 2, 28), 29, core.NewDate(2026, 2, 28)},
		{"yearly returns to leap day", core.Yearly, core.NewDate(2027, 2, 28), 29, core.NewDate(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.every, tt.from, tt.anchor)
			if err != nil {
				t.Fatalf("Advance() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Advance(%s, %s, %d) = %s, want %s", tt.every, tt.from, tt.anchor, got, tt.want)
			}
		})
	}
}

func TestMonthlyChain(t *testing.T) {
	d := core.NewDate(2024, 1, 31)
	want := []string{"2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30"}
	for _, w := range want {
		d = MonthlyCadence{}.Next(d, 31)
		if d.String() != w {
			t.Fatalf("next = %s, want %s", d, w)
		}
	}
}

func TestGetCadence_Unknown(t *testing.T) {
	_, err := GetCadence(core.Frequency("daily"))
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("GetCadence(daily) error = %v, want ErrInvalidFrequency", err)
	}
	if _, err := Advance("fortnightly", core.NewDate(2024, 1, 1), 1); err == nil {
		t.Fatal("Advance() should fail for unknown frequency")
	}
}

type fortnightly struct{}

func (fortnightly) Next(from core.Date, _ int) core.Date { return from.AddDays(14) }

func TestRegisterCadence(t *testing.T) {
	f := core.Frequency("fortnightly")
	RegisterCadence(f, fortnightly{})
	t.Cleanup(func() {
		cadenceMu.Lock()
		delete(cadences, f)
		cadenceMu.Unlock()
	})

	got, err := Advance(f, core.NewDate(2024, 6, 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(core.NewDate(2024, 6, 15)) {
		t.Errorf("Advance() = %s, want 2024-06-15", got)
	}
}
