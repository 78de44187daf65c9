package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

var accountCmd = &cobra.Command{Use: "account", Short: "Manage accounts"}
var cardCmd = &cobra.Command{Use: "card", Short: "Manage cards"}
var ruleCmd = &cobra.Command{Use: "rule", Short: "Manage recurring rules"}
var postingCmd = &cobra.Command{Use: "posting", Short: "Record and delete postings"}

var (
	acctName     string
	acctType     string
	acctCurrency string

	cardAccount int64
	cardName    string
	cardClosing int
	cardDue     int
	cardLimit   string

	ruleAccount  int64
	ruleDesc     string
	ruleCategory string
	ruleAmount   string
	ruleEvery    string
	ruleStart    string
	ruleAnchor   int
	ruleAutoPost bool

	postAccount  int64
	postDate     string
	postAmount   string
	postDesc     string
	postCategory string
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open an account",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		acc, err := a.accounts.OpenAccount(cmd.Context(), core.Account{
			Owner:    flagOwner,
			Name:     acctName,
			Type:     core.AccountType(acctType),
			Currency: acctCurrency,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "account %d: %s (%s, %s)\n", acc.ID, acc.Name, acc.Type, acc.Currency)
		return nil
	}),
}

var cardCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a card on a credit account",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		var limit core.Money
		if cardLimit != "" {
			cents, err := core.ParseDecimalToCents(cardLimit)
			if err != nil {
				return fmt.Errorf("--limit: %w", err)
			}
			limit = core.Money{Cents: cents}
		}
		card, err := a.accounts.IssueCard(cmd.Context(), core.Card{
			Owner:      flagOwner,
			AccountID:  cardAccount,
			Name:       cardName,
			ClosingDay: cardClosing,
			DueDay:     cardDue,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "card %d: %s closes on %d, due on %d\n", card.ID, card.Name, card.ClosingDay, card.DueDay)
		return nil
	}),
}

var ruleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a recurring rule",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		cents, err := core.ParseSignedCents(ruleAmount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		start, err := dateFlag(ruleStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		rule, err := a.accounts.AddRule(cmd.Context(), core.RecurringRule{
			Owner:       flagOwner,
			AccountID:   ruleAccount,
			Category:    ruleCategory,
			Description: ruleDesc,
			Amount:      core.Money{Cents: cents},
			Every:       core.Frequency(ruleEvery),
			NextDate:    start,
			AnchorDay:   ruleAnchor,
			AutoPost:    ruleAutoPost,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rule %d: %s %s every %s from %s\n", rule.ID, rule.Description, rule.Amount, rule.Every, rule.NextDate)
		return nil
	}),
}

var postingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a posting; negative amounts are outflows",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		cents, err := core.ParseSignedCents(postAmount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		date, err := dateFlag(postDate)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		p, err := a.postings.RecordPosting(cmd.Context(), core.Posting{
			Owner:       flagOwner,
			AccountID:   postAccount,
			Date:        date,
			Amount:      core.Money{Cents: cents},
			Description: postDesc,
			Category:    postCategory,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "posting %d: %s %s on %s\n", p.ID, p.Amount, p.Description, p.Date)
		return nil
	}),
}

var postingDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a posting",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid posting id %q", args[0])
		}
		if err := a.postings.DeletePosting(cmd.Context(), flagOwner, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "posting %d deleted\n", id)
		return nil
	}),
}

func init() {
	f := accountCreateCmd.Flags()
	f.StringVar(&acctName, "name", "", "Account name")
	f.StringVar(&acctType, "type", string(core.AccountChecking), "checking, savings, cash, credit or investment")
	f.StringVar(&acctCurrency, "currency", "EUR", "ISO currency code")
	_ = accountCreateCmd.MarkFlagRequired("name")

	f = cardCreateCmd.Flags()
	f.Int64Var(&cardAccount, "account", 0, "Credit account id")
	f.StringVar(&cardName, "name", "", "Card name")
	f.IntVar(&cardClosing, "closing-day", 0, "Day of month the cycle closes (1-28)")
	f.IntVar(&cardDue, "due-day", 0, "Day of month payment is due (1-28)")
	f.StringVar(&cardLimit, "limit", "", "Credit limit, e.g. 1500.00")
	for _, name := range []string{"account", "name", "closing-day", "due-day"} {
		_ = cardCreateCmd.MarkFlagRequired(name)
	}

	f = ruleCreateCmd.Flags()
	f.Int64Var(&ruleAccount, "account", 0, "Account id")
	f.StringVar(&ruleDesc, "description", "", "Posting description")
	f.StringVar(&ruleCategory, "category", "", "Posting category")
	f.StringVar(&ruleAmount, "amount", "", "Signed amount, e.g. -49.90")
	f.StringVar(&ruleEvery, "every", string(core.Monthly), "weekly, monthly or yearly")
	f.StringVar(&ruleStart, "start", "", "First occurrence (YYYY-MM-DD, default today)")
	f.IntVar(&ruleAnchor, "anchor-day", 0, "Day of month the rule is pinned to")
	f.BoolVar(&ruleAutoPost, "auto-post", true, "Post occurrences automatically")
	for _, name := range []string{"account", "description", "amount"} {
		_ = ruleCreateCmd.MarkFlagRequired(name)
	}

	f = postingAddCmd.Flags()
	f.Int64Var(&postAccount, "account", 0, "Account id")
	f.StringVar(&postDate, "date", "", "Posting date (YYYY-MM-DD, default today)")
	f.StringVar(&postAmount, "amount", "", "Signed amount, e.g. -12.50")
	f.StringVar(&postDesc, "description", "", "Description")
	f.StringVar(&postCategory, "category", "", "Category")
	for _, name := range []string{"account", "amount", "description"} {
		_ = postingAddCmd.MarkFlagRequired(name)
	}

	accountCmd.AddCommand(accountCreateCmd)
	cardCmd.AddCommand(cardCreateCmd)
	ruleCmd.AddCommand(ruleCreateCmd)
	postingCmd.AddCommand(postingAddCmd, postingDeleteCmd)
	rootCmd.AddCommand(accountCmd, cardCmd, ruleCmd, postingCmd)
}
