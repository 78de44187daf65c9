package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/lock"
	"fintrack/internal/metrics"
)

const (
	posterLockName = "recurring-poster"
	posterLockTTL  = 5 * time.Minute
)

// ErrRunInProgress is returned when another poster run holds the lock.
var ErrRunInProgress = errors.New("recurring poster run already in progress")

// RecurringPoster materializes due recurring rules into postings.
type RecurringPoster struct {
	store    ledger.Store
	postings *PostingService
	locker   lock.Locker
}

// NewRecurringPoster creates a poster. locker may be nil for a single
// instance without run serialization.
func NewRecurringPoster(store ledger.Store, postings *PostingService, locker lock.Locker) *RecurringPoster {
	return &RecurringPoster{
		store:    store,
		postings: postings,
		locker:   locker,
	}
}

// Run processes every rule whose next date is on or before today. Each rule
// advances by exactly one period per run; a rule that fails is logged and
// skipped without stopping the others.
func (p *RecurringPoster) Run(ctx context.Context, today core.Date) (core.RunSummary, error) {
	sum, err := p.run(ctx, today)
	switch {
	case errors.Is(err, ErrRunInProgress):
		metrics.RecurringRuns.WithLabelValues(metrics.ResultSkipped).Inc()
	default:
		metrics.RecurringRuns.WithLabelValues(metrics.Result(err)).Inc()
	}
	return sum, err
}

func (p *RecurringPoster) run(ctx context.Context, today core.Date) (core.RunSummary, error) {
	if p.store == nil {
		return core.RunSummary{}, fmt.Errorf("poster not properly initialized")
	}

	if p.locker != nil {
		lease, err := p.locker.Acquire(ctx, posterLockName, posterLockTTL)
		if errors.Is(err, lock.ErrHeld) {
			return core.RunSummary{}, ErrRunInProgress
		}
		if err != nil {
			return core.RunSummary{}, fmt.Errorf("acquire poster lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "Failed to release poster lock", "error", err)
			}
		}()
	}

	rules, err := p.store.ListDueRules(ctx, today)
	if err != nil {
		return core.RunSummary{}, fmt.Errorf("list due rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"due", len(rules),
		"today", today)

	summary := core.RunSummary{Checked: len(rules)}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		posted, err := p.processRule(ctx, rule)
		metrics.RecurringRules.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			summary.Failed++
			slog.ErrorContext(ctx, "Failed to process recurring rule",
				"rule_id", rule.ID,
				"owner", rule.Owner,
				"account_id", rule.AccountID,
				"next_date", rule.NextDate,
				"frequency", rule.Every,
				"error", err)
			continue
		}

		summary.Processed++
		if posted != nil {
			summary.Created++
			metrics.RecurringPostings.Inc()
			if p.postings != nil {
				p.postings.announce(ctx, *posted)
			}
		}
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"processed", summary.Processed,
		"created", summary.Created,
		"failed", summary.Failed,
		"total_checked", summary.Checked)

	return summary, nil
}

// processRule posts the rule's occurrence when auto-post is on and advances
// its next date, both in one transaction.
func (p *RecurringPoster) processRule(ctx context.Context, rule core.RecurringRule) (*core.Posting, error) {
	next, err := Advance(rule.Every, rule.NextDate, rule.Anchor())
	if err != nil {
		return nil, err
	}

	var posted *core.Posting
	err = p.store.WithTx(ctx, ledger.SystemScope, func(tx ledger.Tx) error {
		if rule.AutoPost {
			saved, err := tx.InsertPosting(ctx, core.Posting{
				Owner:       rule.Owner,
				AccountID:   rule.AccountID,
				Date:        rule.NextDate,
				Amount:      rule.Amount,
				Description: rule.Description,
				Category:    rule.Category,
			})
			if err != nil {
				return fmt.Errorf("insert posting: %w", err)
			}
			posted = &saved
		}
		if err := tx.UpdateRuleNextDate(ctx, rule.ID, next); err != nil {
			return fmt.Errorf("advance next date to %s: %w", next, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}
