// Command fintrackctl administers a fintrack ledger from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
)

var (
	flagOwner  string
	flagEnv    string
	flagFormat string
)

var rootCmd = &cobra.Command{
	Use:           "fintrackctl",
	Short:         "Administer a fintrack ledger",
	Long:          "Create accounts and cards, generate and pay card statements, and post recurring rules.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "", "Owner the command acts for")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env-file", ".env", "Env file to load before the configuration")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "output", "o", "text", "Output format: text or json")
}

func main() {
	ctx, stop := cli.SignalContext()
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the per-invocation wiring shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *flog.Logger
	comps      *backend.Components
	accounts   *services.AccountService
	postings   *services.PostingService
	statements *services.StatementEngine
	poster     *services.RecurringPoster
}

func openApp(ctx context.Context) (*app, error) {
	if err := cli.LoadEnvFile(flagEnv); err != nil {
		return nil, err
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, flog.ComponentCLI)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	comps, err := backend.NewFactory(logger.Logger).Build(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	postings := services.NewPostingService(comps.Store, comps.Publisher)
	return &app{
		cfg:        cfg,
		logger:     logger,
		comps:      comps,
		accounts:   services.NewAccountService(comps.Store),
		postings:   postings,
		statements: services.NewStatementEngine(comps.Store, postings),
		poster:     services.NewRecurringPoster(comps.Store, postings, comps.Locker),
	}, nil
}

func (a *app) Close() {
	if err := a.comps.Close(); err != nil {
		a.logger.Warn("Failed to close components", "error", err)
	}
}

// withApp opens the app around fn.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func requireOwner() error {
	if flagOwner == "" {
		return fmt.Errorf("--owner is required")
	}
	return nil
}
