package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"churchbook/internal/core"
)

// AllCategories selects every row in FilterBreakdown.
const AllCategories = "ALL"

// Window is an inclusive date range in stored YYYY-MM-DD form.
type Window struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (w Window) contains(date string) bool {
	return date >= w.From && date <= w.To
}

// PeriodTotals are the income, expense and net totals of a window.
type PeriodTotals struct {
	Window
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

// CategoryTotal is a category's summed amount and its share of the group
// total, in percent with one decimal.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   int64           `json:"amount"`
	Share    decimal.Decimal `json:"share"`
}

// SpecialTotals hold the two special income categories.
type SpecialTotals struct {
	Building int64 `json:"building"`
	Special  int64 `json:"special"`
}

// entry is a transaction with its date validity checked once.
type entry struct {
	tx    core.Transaction
	year  int
	valid bool
}

func classify(txs []core.Transaction) []entry {
	out := make([]entry, len(txs))
	for i, t := range txs {
		out[i] = entry{tx: t}
		if d, err := core.ParseDate(t.Date); err == nil {
			out[i].valid = true
			out[i].year = d.Year()
		}
	}
	return out
}

// usable reports whether e contributes to period aggregates.
func (e entry) usable() bool {
	return e.valid && e.tx.Amount > 0 && e.tx.Type.Validate() == nil
}

// WeekWindow spans from the most recent Sunday (inclusive) through today.
func WeekWindow(today core.Date) Window {
	start := today.AddDays(-int(today.Weekday()))
	return Window{From: start.String(), To: today.String()}
}

// YearToDateWindow spans January 1st of today's year through today.
func YearToDateWindow(today core.Date) Window {
	return Window{From: core.YearStart(today.Year()), To: today.String()}
}

// YearWindow spans the full calendar year.
func YearWindow(year int) Window {
	return Window{From: core.YearStart(year), To: core.YearEnd(year)}
}

func totals(entries []entry, w Window) PeriodTotals {
	p := PeriodTotals{Window: w}
	for _, e := range entries {
		if !e.usable() || !w.contains(e.tx.Date) {
			continue
		}
		switch e.tx.Type {
		case core.Income:
			p.Income += e.tx.Amount
		case core.Expense:
			p.Expense += e.tx.Amount
		}
	}
	p.Net = p.Income - p.Expense
	return p
}

// breakdown sums amounts of txType per category over the given category
// list, keeping its order and including zero rows.
func breakdown(entries []entry, w Window, txType core.TxType, categories []string) []CategoryTotal {
	sums := make(map[string]int64, len(categories))
	for _, e := range entries {
		if !e.usable() || e.tx.Type != txType || !w.contains(e.tx.Date) {
			continue
		}
		sums[e.tx.Category] += e.tx.Amount
	}

	rows := make([]CategoryTotal, len(categories))
	var total int64
	for i, c := range categories {
		rows[i] = CategoryTotal{Category: c, Amount: sums[c]}
		total += sums[c]
	}
	for i := range rows {
		rows[i].Share = share(rows[i].Amount, total)
	}
	return rows
}

func share(amount, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total)).Round(1)
}

func specials(entries []entry, w Window) SpecialTotals {
	building, special := core.SpecialCategories()
	var s SpecialTotals
	for _, e := range entries {
		if !e.usable() || e.tx.Type != core.Income || !w.contains(e.tx.Date) {
			continue
		}
		switch e.tx.Category {
		case building:
			s.Building += e.tx.Amount
		case special:
			s.Special += e.tx.Amount
		}
	}
	return s
}

// expenseCategories returns the registry followed by any categories seen in
// the window but missing from it, the latter in collation order.
func expenseCategories(o *orderer, entries []entry, w Window, registry []string) []string {
	out := slices.Clone(registry)
	known := make(map[string]bool, len(registry))
	for _, c := range registry {
		known[c] = true
	}
	var extra []string
	for _, e := range entries {
		if !e.usable() || e.tx.Type != core.Expense || !w.contains(e.tx.Date) || known[e.tx.Category] {
			continue
		}
		known[e.tx.Category] = true
		extra = append(extra, e.tx.Category)
	}
	slices.SortFunc(extra, func(a, b string) int {
		if c := o.coll.CompareString(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return append(out, extra...)
}

// availableYears lists the distinct years of valid dates plus currentYear,
// descending.
func availableYears(entries []entry, currentYear int) []int {
	seen := map[int]bool{currentYear: true}
	years := []int{currentYear}
	for _, e := range entries {
		if !e.valid || seen[e.year] {
			continue
		}
		seen[e.year] = true
		years = append(years, e.year)
	}
	slices.SortFunc(years, func(a, b int) int { return cmp.Compare(b, a) })
	return years
}

// AvailableYears returns the selectable years for txs, always including
// the year of today.
func AvailableYears(txs []core.Transaction, today core.Date) []int {
	return availableYears(classify(txs), today.Year())
}

// FilterBreakdown returns a copy of rows restricted to selection.
// AllCategories keeps every row; an unknown category yields an empty slice.
func FilterBreakdown(rows []CategoryTotal, selection string) []CategoryTotal {
	if selection == "" || selection == AllCategories {
		return slices.Clone(rows)
	}
	out := []CategoryTotal{}
	for _, r := range rows {
		if r.Category == selection {
			out = append(out, r)
		}
	}
	return out
}
