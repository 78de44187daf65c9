package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often the outbox is scanned for unsynced postings (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of postings mirrored per poll (default: 50)
	BatchSize int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
	}
}

// SyncProcessor mirrors postings to the spreadsheet. Events drive it through
// SyncPosting and RemovePosting; the outbox loop catches postings whose event
// was lost or whose sync failed.
type SyncProcessor struct {
	store  ledger.SyncStore
	mirror sheets.Mirror
	config SyncProcessorConfig

	// Serializes writes so the event path and the outbox never append the
	// same posting twice.
	writeMu sync.Mutex
	// unmarked holds postings appended to the mirror whose synced flag could
	// not be stored; they are retried by marking only. Guarded by writeMu.
	unmarked map[int64]struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store ledger.SyncStore, mirror sheets.Mirror, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		store:    store,
		mirror:   mirror,
		config:   config,
		unmarked: make(map[int64]struct{}),
	}
}

// errNotMarked reports a posting that reached the mirror but is not yet
// flagged as synced in the store.
var errNotMarked = errors.New("posting mirrored but not marked synced")

// SyncPosting mirrors one posting. Already synced and deleted postings are
// skipped, so redelivered events are harmless.
func (p *SyncProcessor) SyncPosting(ctx context.Context, id int64) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	posting, err := p.store.GetPostingForSync(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Posting to sync no longer exists", "posting_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get posting %d: %w", id, err)
	}
	// The outbox retries the mark; requeueing the event would not help.
	if err := p.syncLocked(ctx, posting); err != nil && !errors.Is(err, errNotMarked) {
		return err
	}
	return nil
}

func (p *SyncProcessor) syncLocked(ctx context.Context, posting core.Posting) error {
	if posting.DeletedAt != nil {
		return nil
	}
	synced, err := p.store.IsPostingSynced(ctx, posting.ID)
	if err != nil {
		return fmt.Errorf("sync status of posting %d: %w", posting.ID, err)
	}
	if synced {
		slog.DebugContext(ctx, "Posting already mirrored", "posting_id", posting.ID)
		return nil
	}

	if _, ok := p.unmarked[posting.ID]; ok {
		return p.markSyncedLocked(ctx, posting.ID)
	}

	ref, err := p.mirror.AppendPosting(ctx, posting)
	metrics.MirrorSyncs.WithLabelValues("append", metrics.Result(err)).Inc()
	if err != nil {
		if markErr := p.store.MarkPostingSyncError(ctx, posting.ID, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync error",
				"posting_id", posting.ID, "error", markErr)
		}
		return fmt.Errorf("append posting %d: %w", posting.ID, err)
	}

	slog.InfoContext(ctx, "Mirrored posting",
		"posting_id", posting.ID,
		"sheets_ref", ref)
	return p.markSyncedLocked(ctx, posting.ID)
}

// markSyncedLocked flags a mirrored posting. On failure the posting is kept
// in unmarked so later attempts never append its row again.
func (p *SyncProcessor) markSyncedLocked(ctx context.Context, id int64) error {
	if err := p.store.MarkPostingSynced(ctx, id); err != nil {
		p.unmarked[id] = struct{}{}
		slog.WarnContext(ctx, "Failed to mark posting as synced",
			"posting_id", id, "error", err)
		return fmt.Errorf("%w: posting %d: %v", errNotMarked, id, err)
	}
	delete(p.unmarked, id)
	return nil
}

// RemovePosting deletes the mirrored row of a soft-deleted posting.
func (p *SyncProcessor) RemovePosting(ctx context.Context, id int64) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	posting, err := p.store.GetPostingForSync(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get posting %d: %w", id, err)
	}
	err = p.mirror.RemovePosting(ctx, posting)
	metrics.MirrorSyncs.WithLabelValues("remove", metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("remove posting %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Removed mirrored posting", "posting_id", id)
	return nil
}

// ProcessBatch mirrors up to BatchSize unsynced postings and returns how
// many succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	items, err := p.store.ListUnsyncedPostings(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced postings: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(items))

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	synced := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := p.syncLocked(ctx, item); err != nil {
			slog.WarnContext(ctx, "Outbox sync failed", "posting_id", item.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// Start begins the outbox loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *SyncProcessor) poll(ctx context.Context) {
	n, err := p.ProcessBatch(ctx)
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Outbox poll failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Outbox poll mirrored postings", "count", n)
	}
}
