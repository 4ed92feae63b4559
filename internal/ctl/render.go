package ctl

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"churchbook/internal/core"
	"churchbook/internal/ledger"
)

// WriteSummary prints a plain-text report of sum.
func WriteSummary(w io.Writer, churchName string, sum ledger.Summary, currency string, rows int) error {
	amt := func(v int64) string { return core.FormatAmount(v, currency) }
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if churchName != "" {
		fmt.Fprintf(w, "%s\n", churchName)
	}
	fmt.Fprintf(w, "As of %s\n\n", sum.Today)

	fmt.Fprintf(tw, "Previous balance\t%s\t\n", amt(sum.Balance.Previous))
	fmt.Fprintf(tw, "Today's change\t%s\t\n", amt(sum.Balance.TodaysChange))
	fmt.Fprintf(tw, "Today's balance\t%s\t\n", amt(sum.Balance.Today))
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "Period\tIncome\tExpense\tNet\t\n")
	for _, p := range []struct {
		label  string
		totals ledger.PeriodTotals
	}{
		{"This week", sum.Week},
		{"Year to date", sum.Year},
		{fmt.Sprintf("Year %d", sum.SelectedYear), sum.Selected},
	} {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", p.label, amt(p.totals.Income), amt(p.totals.Expense), amt(p.totals.Net))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	writeBreakdown(w, fmt.Sprintf("Offerings %d", sum.SelectedYear), sum.SelectedCore, amt)
	fmt.Fprintf(w, "  Building offering: %s, special offering: %s\n",
		amt(sum.SelectedSpecial.Building), amt(sum.SelectedSpecial.Special))
	writeBreakdown(w, fmt.Sprintf("Expenses %d", sum.SelectedYear), sum.SelectedExpenses, amt)

	if rows > 0 && len(sum.Rows) > 0 {
		fmt.Fprintf(w, "\nRecent entries\n")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range sum.Rows[:min(rows, len(sum.Rows))] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Date, r.Type, r.Category, r.MemberName, amt(r.Signed()), amt(r.Balance))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if sum.Skipped > 0 {
		fmt.Fprintf(w, "\n%d malformed transactions were left out of the totals\n", sum.Skipped)
	}
	return nil
}

func writeBreakdown(w io.Writer, title string, rows []ledger.CategoryTotal, amt func(int64) string) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(rows) == 0 {
		fmt.Fprintf(w, "  (none)\n")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s%%\n", r.Category, amt(r.Amount), r.Share.StringFixed(1))
	}
	tw.Flush()
}

// WriteSnapshots lists snapshots newest first.
func WriteSnapshots(w io.Writer, snaps []core.Snapshot) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTAKEN\tMEMBERS\tTRANSACTIONS\n")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, s.TakenAt.Local().Format(time.DateTime),
			len(s.Data.Members), len(s.Data.Transactions))
	}
	return tw.Flush()
}
