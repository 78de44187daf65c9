package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	flog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/postgres"
)

var (
	flagTTL   time.Duration
	flagSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cli.LoadEnvFile(flagEnv); err != nil {
			return err
		}
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg, flog.ComponentStorage)

		var mg *storage.Migrator
		switch backend.BackendType(cfg.DataBackend) {
		case backend.SQLiteBackend:
			mg, err = storage.NewSQLiteMigrator(cfg.SQLiteDBPath)
		case backend.PostgresBackend:
			mg, err = postgres.NewMigrator(cfg.DatabaseURL)
		default:
			return fmt.Errorf("backend %q has no schema to migrate", cfg.DataBackend)
		}
		if err != nil {
			return err
		}
		defer mg.Close()

		if flagSteps != 0 {
			err = mg.Steps(flagSteps)
		} else {
			err = mg.Up()
		}
		if err != nil {
			return err
		}
		version, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		logger.Info("Migrations applied", "backend", cfg.DataBackend, "steps", flagSteps)
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", version, dirty)
		return nil
	},
}

var tokenCmd = &cobra.Command{Use: "token", Short: "Manage API tokens"}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for --owner signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		if err := cli.LoadEnvFile(flagEnv); err != nil {
			return err
		}
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tok, err := apphttp.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience).Issue(flagOwner, flagTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&flagSteps, "steps", 0, "Apply n migrations, or roll back -n; 0 applies all pending")
	tokenIssueCmd.Flags().DurationVar(&flagTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(migrateCmd, tokenCmd)
}
