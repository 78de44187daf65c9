package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fintrack/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatements(w io.Writer, items []core.Statement) error {
	if flagFormat == "json" {
		return printJSON(w, items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCYCLE\tDUE\tTOTAL\tSTATUS")
	for _, s := range items {
		fmt.Fprintf(tw, "%d\t%s..%s\t%s\t%s\t%s\n", s.ID, s.CycleStart, s.CycleEnd, s.DueDate, s.AmountTotal, s.Status)
	}
	return tw.Flush()
}

func printPayment(w io.Writer, p core.Payment) error {
	if flagFormat == "json" {
		return printJSON(w, p)
	}
	fmt.Fprintf(w, "Paid statement %d (%s) on %s\n", p.Statement.ID, p.Credit.Amount, p.Debit.Date)
	fmt.Fprintf(w, "  debit   posting %d on account %d: %s\n", p.Debit.ID, p.Debit.AccountID, p.Debit.Amount)
	fmt.Fprintf(w, "  credit  posting %d on account %d: %s\n", p.Credit.ID, p.Credit.AccountID, p.Credit.Amount)
	fmt.Fprintf(w, "  transfer group %s\n", p.TransferGroup)
	return nil
}

func printRun(w io.Writer, today core.Date, sum core.RunSummary) error {
	if flagFormat == "json" {
		return printJSON(w, sum)
	}
	fmt.Fprintf(w, "Recurring run for %s: %d checked, %d processed, %d posted, %d failed\n",
		today, sum.Checked, sum.Processed, sum.Created, sum.Failed)
	return nil
}
