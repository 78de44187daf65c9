// Package services holds the ledger use cases: statement generation and
// settlement, the recurrence poster and posting bookkeeping.
package services

import (
	"fmt"
	"sync"

	"fintrack/internal/core"
)

// Cadence advances a recurring rule's next date by one period. Each frequency
// has its own strategy.
type Cadence interface {
	// Next returns the date one period after from. anchorDay is the day of
	// month the rule is pinned to; month-based cadences clamp it to the
	// target month's last day.
	Next(from core.Date, anchorDay int) core.Date
}

type WeeklyCadence struct{}

func (WeeklyCadence) Next(from core.Date, _ int) core.Date {
	return from.AddDays(7)
}

// MonthlyCadence lands on anchorDay of the following month.
type MonthlyCadence struct{}

func (MonthlyCadence) Next(from core.Date, anchorDay int) core.Date {
	return core.AddMonthsClamped(from, 1, anchorDay)
}

// YearlyCadence lands on the same month and anchor day a year later, so a
// 29 February rule falls on the 28th outside leap years.
type YearlyCadence struct{}

func (YearlyCadence) Next(from core.Date, anchorDay int) core.Date {
	return core.AddMonthsClamped(from, 12, anchorDay)
}

var (
	cadenceMu sync.RWMutex
	cadences  = map[core.Frequency]Cadence{
		core.Weekly:  WeeklyCadence{},
		core.Monthly: MonthlyCadence{},
		core.Yearly:  YearlyCadence{},
	}
)

// GetCadence returns the strategy for a frequency.
func GetCadence(f core.Frequency) (Cadence, error) {
	cadenceMu.RLock()
	defer cadenceMu.RUnlock()
	c, ok := cadences[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
	return c, nil
}

// RegisterCadence installs or replaces the strategy for a frequency.
func RegisterCadence(f core.Frequency, c Cadence) {
	cadenceMu.Lock()
	defer cadenceMu.Unlock()
	cadences[f] = c
}

// Advance returns the rule date one period after from.
func Advance(f core.Frequency, from core.Date, anchorDay int) (core.Date, error) {
	c, err := GetCadence(f)
	if err != nil {
		return core.Date{}, err
	}
	return c.Next(from, anchorDay), nil
}
