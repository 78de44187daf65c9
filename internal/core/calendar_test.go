package core

import (
	"errors"
	"testing"
	"time"
)

func TestComputeCycle(t *testing.T) {
	tests := []struct {
		name       string
		closingDay int
		asOf       Date
		wantStart  Date
		wantEnd    Date
	}{
		{
			name:       "after closing day - cycle ended this month",
			closingDay: 5,
			asOf:       NewDate(2024, 3, 10),
			wantStart:  NewDate(2024, 2, 6),
			wantEnd:    NewDate(2024, 3, 5),
		},
		{
			name:       "on closing day - cycle ending today is still open",
			closingDay: 5,
			asOf:       NewDate(2024, 3, 5),
			wantStart:  NewDate(2024, 1, 6),
			wantEnd:    NewDate(2024, 2, 5),
		},
		{
			name:       "day after closing - cycle ending yesterday",
			closingDay: 5,
			asOf:       NewDate(2024, 3, 6),
			wantStart:  NewDate(2024, 2, 6),
			wantEnd:    NewDate(2024, 3, 5),
		},
		{
			name:       "january before closing crosses year",
			closingDay: 20,
			asOf:       NewDate(2024, 1, 3),
			wantStart:  NewDate(2023, 11, 21),
			wantEnd:    NewDate(2023, 12, 20),
		},
		{
			name:       "february in leap year with closing 28",
			closingDay: 28,
			asOf:       NewDate(2024, 3, 29),
			wantStart:  NewDate(2024, 2, 29),
			wantEnd:    NewDate(2024, 3, 28),
		},
		{
			name:       "previous close on 28 feb in non-leap year starts on 1 march",
			closingDay: 28,
			asOf:       NewDate(2023, 3, 30),
			wantStart:  NewDate(2023, 3, 1),
			wantEnd:    NewDate(2023, 3, 28),
		},
		{
			name:       "closing day 1",
			closingDay: 1,
			asOf:       NewDate(2024, 5, 1),
			wantStart:  NewDate(2024, 3, 2),
			wantEnd:    NewDate(2024, 4, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeCycle(tt.closingDay, tt.asOf)
			if err != nil {
				t.Fatalf("ComputeCycle() error = %v", err)
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("ComputeCycle(%d, %s) = %s, want %s..%s",
					tt.closingDay, tt.asOf, got, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestComputeCycleProperties(t *testing.T) {
	from := NewDate(2023, 1, 1)
	to := NewDate(2024, 12, 31)
	for c := 1; c <= MaxCycleDay; c++ {
		for d := from; !d.After(to); d = d.AddDays(1) {
			cycle, err := ComputeCycle(c, d)
			if err != nil {
				t.Fatalf("ComputeCycle(%d, %s) error = %v", c, d, err)
			}
			if cycle.End.Day() != c {
				t.Fatalf("ComputeCycle(%d, %s): end day = %d", c, d, cycle.End.Day())
			}
			if !cycle.Start.Before(cycle.End) {
				t.Fatalf("ComputeCycle(%d, %s): start %s not before end %s", c, d, cycle.Start, cycle.End)
			}
			if !cycle.End.Before(d) {
				t.Fatalf("ComputeCycle(%d, %s): end %s not before as-of", c, d, cycle.End)
			}
			prevClose := cycle.Start.AddDays(-1)
			if prevClose.Day() != c && !(prevClose.Month() == 2 && prevClose.Day() == DaysIn(prevClose.Year(), time.February)) {
				t.Fatalf("ComputeCycle(%d, %s): start %s does not follow a closing day", c, d, cycle.Start)
			}
			if cycle.Start.Day() != c+1 && cycle.Start.Day() != 1 {
				t.Fatalf("ComputeCycle(%d, %s): start day = %d, want %d", c, d, cycle.Start.Day(), c+1)
			}
			// Consecutive cycles tile the calendar without gaps.
			prev, _ := ComputeCycle(c, cycle.Start)
			if !prev.End.AddDays(1).Equal(cycle.Start) && !prev.End.Equal(cycle.End) {
				t.Fatalf("ComputeCycle(%d, %s): gap between %s and %s", c, d, prev, cycle)
			}
		}
	}
}

func TestComputeCycleClosingDayBoundary(t *testing.T) {
	// A posting on the closing day belongs to the cycle ending that day.
	cycle, err := ComputeCycle(5, NewDate(2024, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	if !cycle.Contains(NewDate(2024, 3, 5)) {
		t.Error("closing-day posting should be in the cycle ending that day")
	}
	if cycle.Contains(NewDate(2024, 3, 6)) {
		t.Error("day after closing should be in the next cycle")
	}
	if !cycle.Contains(NewDate(2024, 2, 6)) {
		t.Error("first day of cycle should be included")
	}
	if cycle.Contains(NewDate(2024, 2, 5)) {
		t.Error("previous closing day belongs to the previous cycle")
	}
}

func TestComputeCycleRejectsBadClosingDay(t *testing.T) {
	for _, c := range []int{0, 29, 31, -1} {
		if _, err := ComputeCycle(c, NewDate(2024, 1, 1)); !errors.Is(err, ErrInvalidClosingDay) {
			t.Errorf("ComputeCycle(%d) error = %v, want ErrInvalidClosingDay", c, err)
		}
	}
	if _, err := ComputeCycle(5, Date{}); err == nil {
		t.Error("expected error for zero as-of date")
	}
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		name   string
		cycle  Cycle
		dueDay int
		want   Date
	}{
		{
			name:   "due after closing",
			cycle:  Cycle{Start: NewDate(2024, 2, 6), End: NewDate(2024, 3, 5)},
			dueDay: 12,
			want:   NewDate(2024, 3, 12),
		},
		{
			name:   "due before closing stays in end month",
			cycle:  Cycle{Start: NewDate(2024, 2, 21), End: NewDate(2024, 3, 20)},
			dueDay: 5,
			want:   NewDate(2024, 3, 5),
		},
		{
			name:   "due equal to closing",
			cycle:  Cycle{Start: NewDate(2024, 2, 6), End: NewDate(2024, 3, 5)},
			dueDay: 5,
			want:   NewDate(2024, 3, 5),
		},
		{
			name:   "december cycle",
			cycle:  Cycle{Start: NewDate(2024, 11, 21), End: NewDate(2024, 12, 20)},
			dueDay: 10,
			want:   NewDate(2024, 12, 10),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DueDate(tt.cycle, tt.dueDay)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("DueDate(%s, %d) = %s, want %s", tt.cycle, tt.dueDay, got, tt.want)
			}
		})
	}

	if _, err := DueDate(Cycle{End: NewDate(2024, 3, 5)}, 30); !errors.Is(err, ErrInvalidDueDay) {
		t.Errorf("expected ErrInvalidDueDay, got %v", err)
	}
}

func TestDueDateClosing20Due5(t *testing.T) {
	cycle, err := ComputeCycle(20, NewDate(2024, 3, 25))
	if err != nil {
		t.Fatal(err)
	}
	if got := cycle.String(); got != "2024-02-21..2024-03-20" {
		t.Fatalf("cycle = %s", got)
	}
	due, err := DueDate(cycle, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !due.Equal(NewDate(2024, 3, 5)) {
		t.Errorf("due = %s, want 2024-03-05", due)
	}
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		from   Date
		months int
		anchor int
		want   Date
	}{
		{"plain month", NewDate(2024, 6, 1), 1, 1, NewDate(2024, 7, 1)},
		{"31 jan to leap feb", NewDate(2024, 1, 31), 1, 31, NewDate(2024, 2, 29)},
		{"clamped feb back to anchor 31", NewDate(2024, 2, 29), 1, 31, NewDate(2024, 3, 31)},
		{"31 jan to non-leap feb", NewDate(2023, 1, 31), 1, 31, NewDate(2023, 2, 28)},
		{"31 mar to 30 apr", NewDate(2024, 3, 31), 1, 31, NewDate(2024, 4, 30)},
		{"december rolls year", NewDate(2024, 12, 15), 1, 15, NewDate(2025, 1, 15)},
		{"yearly from leap day", NewDate(2024, 2, 29), 12, 29, NewDate(2025, 2, 28)},
		{"yearly back to leap day", NewDate(2027, 2, 28), 12, 29, NewDate(2028, 2, 29)},
		{"zero anchor uses date day", NewDate(2024, 5, 10), 1, 0, NewDate(2024, 6, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamped(tt.from, tt.months, tt.anchor)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonthsClamped(%s, %d, %d) = %s, want %s", tt.from, tt.months, tt.anchor, got, tt.want)
			}
		})
	}
}
