// Package ledger derives every ledger view from the flat transaction log.
//
// Summarize is a pure function of its Input: it never reads a clock or a
// store, never mutates its arguments and returns freshly allocated values,
// so it is safe to call concurrently and to recompute on every change.
//
// Records are not re-validated here. A transaction whose date does not
// parse is left out of the today split, the period windows and year
// discovery; a transaction with a non-positive amount contributes zero to
// every sum. Both still appear in the ledger rows and are counted in
// Summary.Skipped.
package ledger

import (
	"golang.org/x/text/language"

	"churchbook/internal/core"
)

// Input is everything the aggregator reads.
type Input struct {
	Transactions      []core.Transaction
	Members           []core.Member
	ExpenseCategories []string
	Today             core.Date
	// SelectedYear defaults to the year of Today when zero.
	SelectedYear int
	// Locale drives category, name and memo collation.
	Locale language.Tag
}

// Summary is the full set of derived views.
type Summary struct {
	Today        string `json:"today"`
	SelectedYear int    `json:"selectedYear"`

	// Rows are most recent first with the balance as of each transaction.
	Rows    []Row        `json:"ledger"`
	Balance BalanceSplit `json:"balance"`

	Week     PeriodTotals `json:"week"`
	Year     PeriodTotals `json:"year"`
	Selected PeriodTotals `json:"selectedYearTotals"`

	WeekCore     []CategoryTotal `json:"weekCore"`
	SelectedCore []CategoryTotal `json:"selectedYearCore"`

	WeekSpecial     SpecialTotals `json:"weekSpecial"`
	SelectedSpecial SpecialTotals `json:"selectedYearSpecial"`

	SelectedExpenses []CategoryTotal `json:"selectedYearExpenses"`

	AvailableYears []int `json:"availableYears"`
	Skipped        int   `json:"skipped"`
}

// Summarize computes every derived view of in.
func Summarize(in Input) Summary {
	o := newOrderer(in.Members, in.Locale)
	entries := classify(in.Transactions)

	year := in.SelectedYear
	if year == 0 {
		year = in.Today.Year()
	}
	today := in.Today.String()
	week := WeekWindow(in.Today)
	ytd := YearToDateWindow(in.Today)
	selected := YearWindow(year)
	coreCats := core.CoreRecurringCategories()

	skipped := 0
	for _, e := range entries {
		if !e.usable() {
			skipped++
		}
	}

	return Summary{
		Today:            today,
		SelectedYear:     year,
		Rows:             runningRows(o, in.Transactions),
		Balance:          splitToday(entries, today),
		Week:             totals(entries, week),
		Year:             totals(entries, ytd),
		Selected:         totals(entries, selected),
		WeekCore:         breakdown(entries, week, core.Income, coreCats),
		SelectedCore:     breakdown(entries, selected, core.Income, coreCats),
		WeekSpecial:      specials(entries, week),
		SelectedSpecial:  specials(entries, selected),
		SelectedExpenses: breakdown(entries, selected, core.Expense, expenseCategories(o, entries, selected, in.ExpenseCategories)),
		AvailableYears:   availableYears(entries, in.Today.Year()),
		Skipped:          skipped,
	}
}

// Page returns the 1-based page of rows and the total page count. Out of
// range pages are clamped.
func Page(rows []Row, page, perPage int) ([]Row, int) {
	if perPage <= 0 {
		perPage = 20
	}
	pages := (len(rows) + perPage - 1) / perPage
	if pages == 0 {
		return []Row{}, 0
	}
	page = max(1, min(page, pages))
	start := (page - 1) * perPage
	end := min(start+perPage, len(rows))
	out := make([]Row, end-start)
	copy(out, rows[start:end])
	return out, pages
}
