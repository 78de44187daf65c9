package core

import (
	"fmt"
	"time"
)

// MaxCycleDay is the last day a card may close or fall due on; every month has it.
const MaxCycleDay = 28

// Cycle is a billing period with inclusive bounds.
type Cycle struct {
	Start Date
	End   Date
}

func (c Cycle) String() string {
	return c.Start.String() + ".." + c.End.String()
}

// Contains reports whether d lies within the cycle, bounds inclusive.
func (c Cycle) Contains(d Date) bool {
	return !d.Before(c.Start) && !d.After(c.End)
}

// ComputeCycle returns the most recently closed billing cycle as of asOf.
//
// A cycle ends on closingDay. When asOf falls on or before the closing day of
// its month, this month's cycle is still open, so the result is the cycle that
// ended on closingDay of the previous month. Otherwise it is the cycle that
// ended on closingDay of asOf's month. Start is the day after the previous
// closing date.
func ComputeCycle(closingDay int, asOf Date) (Cycle, error) {
	if closingDay < 1 || closingDay > MaxCycleDay {
		return Cycle{}, fmt.Errorf("%w: got %d", ErrInvalidClosingDay, closingDay)
	}
	if asOf.IsZero() {
		return Cycle{}, fmt.Errorf("compute cycle: zero as-of date")
	}

	endMonth := time.Month(asOf.Month())
	if asOf.Day() <= closingDay {
		endMonth--
	}
	// time.Date normalizes month 0 and -1 into the previous year.
	end := Date{Time: time.Date(asOf.Year(), endMonth, closingDay, 0, 0, 0, 0, time.UTC)}
	prevClose := Date{Time: time.Date(asOf.Year(), endMonth-1, closingDay, 0, 0, 0, 0, time.UTC)}

	return Cycle{Start: prevClose.AddDays(1), End: end}, nil
}

// DueDate returns the payment due date for a cycle: dueDay of the month the
// cycle ends in. A dueDay on or before the closing day therefore precedes the
// cycle end.
func DueDate(cycle Cycle, dueDay int) (Date, error) {
	if dueDay < 1 || dueDay > MaxCycleDay {
		return Date{}, fmt.Errorf("%w: got %d", ErrInvalidDueDay, dueDay)
	}
	return NewDate(cycle.End.Year(), cycle.End.Month(), dueDay), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped moves d forward by n months landing on anchorDay, clamped
// to the last day of the target month. 2024-01-31 +1 month is 2024-02-29.
func AddMonthsClamped(d Date, n int, anchorDay int) Date {
	if anchorDay < 1 {
		anchorDay = d.Day()
	}
	// Normalize via the first of the month so time.Date never rolls over.
	first := time.Date(d.Year(), time.Month(d.Month())+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
