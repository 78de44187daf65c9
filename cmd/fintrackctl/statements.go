package main

import (
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

var (
	flagCard  int64
	flagAsOf  string
	flagStmt  int64
	flagFrom  int64
	flagToday string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the statement of the cycle containing --as-of",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		asOf, err := dateFlag(flagAsOf)
		if err != nil {
			return err
		}
		st, err := a.statements.GenerateStatement(cmd.Context(), flagOwner, flagCard, asOf)
		if err != nil {
			return err
		}
		return printStatements(cmd.OutOrStdout(), []core.Statement{st})
	}),
}

var statementsCmd = &cobra.Command{
	Use:   "statements",
	Short: "List the statements of a card, newest first",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		items, err := a.statements.ListStatements(cmd.Context(), flagOwner, flagCard)
		if err != nil {
			return err
		}
		return printStatements(cmd.OutOrStdout(), items)
	}),
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay a closed statement from an account",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		pay, err := a.statements.PayStatement(cmd.Context(), flagOwner, flagStmt, flagFrom)
		if err != nil {
			return err
		}
		return printPayment(cmd.OutOrStdout(), pay)
	}),
}

var postRecurringCmd = &cobra.Command{
	Use:   "post-recurring",
	Short: "Post every recurring rule due on --today",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		today, err := dateFlag(flagToday)
		if err != nil {
			return err
		}
		sum, err := a.poster.Run(cmd.Context(), today)
		if err != nil {
			return err
		}
		return printRun(cmd.OutOrStdout(), today, sum)
	}),
}

// dateFlag parses a YYYY-MM-DD flag, defaulting to today.
func dateFlag(v string) (core.Date, error) {
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(v)
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, statementsCmd} {
		c.Flags().Int64Var(&flagCard, "card", 0, "Card id")
		_ = c.MarkFlagRequired("card")
	}
	generateCmd.Flags().StringVar(&flagAsOf, "as-of", "", "Date inside the cycle (YYYY-MM-DD, default today)")

	payCmd.Flags().Int64Var(&flagStmt, "statement", 0, "Statement id")
	payCmd.Flags().Int64Var(&flagFrom, "from", 0, "Account paying the statement")
	_ = payCmd.MarkFlagRequired("statement")
	_ = payCmd.MarkFlagRequired("from")

	postRecurringCmd.Flags().StringVar(&flagToday, "today", "", "Run date (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(generateCmd, statementsCmd, payCmd, postRecurringCmd)
}
