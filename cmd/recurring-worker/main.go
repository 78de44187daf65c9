package main

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	ctx, stop := cli.SignalContext()
	defer stop()

	cfg, logger, comps := cli.Bootstrap(ctx, flog.ComponentPoster)
	defer comps.Close()

	postings := services.NewPostingService(comps.Store, comps.Publisher)
	poster := services.NewRecurringPoster(comps.Store, postings, comps.Locker)

	interval := cfg.RecurringInterval
	logger.Info("Starting recurring-worker",
		"interval", interval,
		"backend", cfg.DataBackend,
		"events", comps.Publisher != nil)

	runOnce(ctx, logger, poster, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring-worker shutdown complete")
			return
		case now := <-ticker.C:
			runOnce(ctx, logger, poster, now)
			logger.Debug("Next recurring check scheduled", "at", now.Add(interval).Format("15:04:05"))
		}
	}
}

// runOnce posts every rule due on now's calendar day. A concurrent run
// elsewhere is not an error for a periodic worker.
func runOnce(ctx context.Context, logger *flog.Logger, poster *services.RecurringPoster, now time.Time) {
	sum, err := poster.Run(ctx, core.DateOf(now))
	switch {
	case err == nil:
		logger.Info("Recurring run complete",
			"processed", sum.Processed,
			"created", sum.Created,
			"failed", sum.Failed)
	case errors.Is(err, services.ErrRunInProgress):
		logger.Info("Recurring run skipped, another run holds the lock")
	case ctx.Err() != nil:
	default:
		logger.Error("Recurring run failed", "error", err)
	}
}
