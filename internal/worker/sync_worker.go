// Package worker consumes ledger events and keeps the spreadsheet mirror
// current.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/services"
)

// EventSource delivers ledger events to a handler until ctx ends.
type EventSource interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// SyncWorker routes ledger events to the sync processor.
type SyncWorker struct {
	processor *services.SyncProcessor
}

func NewSyncWorker(processor *services.SyncProcessor) *SyncWorker {
	return &SyncWorker{processor: processor}
}

// HandleEvent processes one event. A returned error requeues it.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"id", ev.ID,
		"owner", ev.Owner)

	switch ev.Type {
	case amqp.PostingCreated:
		if err := w.processor.SyncPosting(ctx, ev.ID); err != nil {
			return fmt.Errorf("sync posting %d: %w", ev.ID, err)
		}
	case amqp.PostingDeleted:
		if err := w.processor.RemovePosting(ctx, ev.ID); err != nil {
			return fmt.Errorf("remove posting %d: %w", ev.ID, err)
		}
	case amqp.StatementPaid:
		// The payment postings arrive as their own events.
		slog.InfoContext(ctx, "Statement paid",
			"statement_id", ev.ID,
			"owner", ev.Owner,
			"transfer_group", ev.TransferGroup)
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "type", ev.Type, "id", ev.ID)
	}
	return nil
}

// StartupSyncCheck mirrors postings left unsynced while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	total := 0
	for {
		n, err := w.processor.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("startup sync: %w", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending postings found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", total)
	return nil
}

// Run performs the startup check, starts the outbox loop and consumes
// events until ctx ends.
func (w *SyncWorker) Run(ctx context.Context, source EventSource) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sync check failed", "error", err)
	}

	if err := w.processor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := w.processor.Stop(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "Failed to stop sync processor", "error", err)
		}
	}()

	if source == nil {
		slog.WarnContext(ctx, "No event source configured, relying on outbox polling")
		<-ctx.Done()
		return ctx.Err()
	}
	return source.Consume(ctx, w.HandleEvent)
}
