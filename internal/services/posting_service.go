package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/metrics"
)

// EventPublisher announces committed ledger changes. Publishing is best
// effort: the ledger row is the source of truth and the sync worker's outbox
// poll picks up anything a lost event missed.
type EventPublisher interface {
	PublishPostingCreated(ctx context.Context, p core.Posting) error
	PublishPostingDeleted(ctx context.Context, owner string, id int64) error
	PublishStatementPaid(ctx context.Context, s core.Statement, transferGroup string) error
	Close() error
}

// PostingService records and removes postings and fans out their events.
// The statement engine and the poster share it for publishing.
type PostingService struct {
	store     ledger.Store
	publisher EventPublisher
	now       func() time.Time
}

// NewPostingService wires the store with an optional publisher.
func NewPostingService(store ledger.Store, publisher EventPublisher) *PostingService {
	return &PostingService{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordPosting inserts a posting and announces it.
func (s *PostingService) RecordPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	if _, err := s.store.GetAccount(ctx, p.Owner, p.AccountID); err != nil {
		return core.Posting{}, fmt.Errorf("resolve account %d: %w", p.AccountID, err)
	}
	saved, err := s.store.InsertPosting(ctx, p)
	if err != nil {
		return core.Posting{}, fmt.Errorf("save posting: %w", err)
	}
	s.announce(ctx, saved)
	return saved, nil
}

// DeletePosting soft-deletes a posting so it no longer counts toward
// statement totals. Deleting an already deleted posting succeeds.
func (s *PostingService) DeletePosting(ctx context.Context, owner string, id int64) error {
	if err := s.store.SoftDeletePosting(ctx, owner, id, s.now()); err != nil {
		return fmt.Errorf("soft delete posting %d: %w", id, err)
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishPostingDeleted(ctx, owner, id); err != nil {
		metrics.EventPublishErrors.WithLabelValues("posting.deleted").Inc()
		slog.ErrorContext(ctx, "Failed to publish posting deletion",
			"posting_id", id, "owner", owner, "error", err)
	}
	return nil
}

// announce publishes posting-created events after commit. Failures are logged.
func (s *PostingService) announce(ctx context.Context, postings ...core.Posting) {
	if s.publisher == nil {
		return
	}
	for _, p := range postings {
		if err := s.publisher.PublishPostingCreated(ctx, p); err != nil {
			metrics.EventPublishErrors.WithLabelValues("posting.created").Inc()
			slog.ErrorContext(ctx, "Failed to publish posting",
				"posting_id", p.ID, "owner", p.Owner, "error", err)
		}
	}
}

func (s *PostingService) announcePayment(ctx context.Context, pay core.Payment) {
	s.announce(ctx, pay.Debit, pay.Credit)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatementPaid(ctx, pay.Statement, pay.TransferGroup); err != nil {
		metrics.EventPublishErrors.WithLabelValues("statement.paid").Inc()
		slog.ErrorContext(ctx, "Failed to publish statement payment",
			"statement_id", pay.Statement.ID, "transfer_group", pay.TransferGroup, "error", err)
	}
}

// Close closes the store and the publisher.
func (s *PostingService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
