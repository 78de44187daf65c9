package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	ctx, stop := cli.SignalContext()
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run serves until ctx ends and returns the process exit code. Deferred
// cleanup runs before main exits.
func run(ctx context.Context) int {
	cfg, logger, comps := cli.Bootstrap(ctx, flog.ComponentHTTP)
	defer comps.Close()

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required to serve the API")
		return 1
	}

	postings := services.NewPostingService(comps.Store, comps.Publisher)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Statements:         services.NewStatementEngine(comps.Store, postings),
		Postings:           postings,
		Poster:             services.NewRecurringPoster(comps.Store, postings, comps.Locker),
		Store:              comps.Store,
		Auth:               apphttp.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		CronSecret:         cfg.CronSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", comps.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		return 1
	}
	logger.Info("Server stopped gracefully")
	return 0
}
