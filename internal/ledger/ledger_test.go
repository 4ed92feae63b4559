package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"churchbook/internal/core"
)

// 2024-06-10 is a Monday.
var monday = core.NewDate(2024, time.June, 10)

func income(id int64, date, category string, amount int64, member int64) core.Transaction {
	return core.Transaction{ID: id, Type: core.Income, Date: date, Category: category, Amount: amount, MemberID: core.MemberRef(member)}
}

func expense(id int64, date, category string, amount int64, memo string) core.Transaction {
	return core.Transaction{ID: id, Type: core.Expense, Date: date, Category: category, Amount: amount, Memo: memo}
}

func ids(txs []core.Transaction) []int64 {
	out := make([]int64, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func rowIDs(rows []Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestRunningBalanceFold(t *testing.T) {
	members := []core.Member{{ID: 1, Name: "Kim", Position: core.Deacon}}
	txs := []core.Transaction{
		income(3, "2024-06-02", core.Tithe, 5000, 1),
		expense(2, "2024-06-02", "Utilities", 3000, ""),
		income(1, "2024-06-01", core.Tithe, 10000, 1),
	}

	chrono := ChronologicalOrder(txs, members, language.English)
	require.Equal(t, []int64{1, 2, 3}, ids(chrono))

	var balances []int64
	var b int64
	for _, tx := range chrono {
		b += tx.Signed()
		balances = append(balances, b)
	}
	assert.Equal(t, []int64{10000, 7000, 12000}, balances)

	rows := RunningBalances(Input{Transactions: txs, Members: members, Locale: language.English})
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{3, 2, 1}, rowIDs(rows))
	assert.Equal(t, int64(12000), rows[0].Balance)
	assert.Equal(t, int64(7000), rows[1].Balance)
	assert.Equal(t, int64(10000), rows[2].Balance)
	assert.Equal(t, "Kim", rows[0].MemberName)
}

func TestRunningBalanceEmpty(t *testing.T) {
	rows := RunningBalances(Input{})
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestOrderIsStableAndInputIndependent(t *testing.T) {
	members := []core.Member{{ID: 1, Name: "Kim"}, {ID: 2, Name: "Lee"}, {ID: 3, Name: "Park"}}
	txs := []core.Transaction{
		income(10, "2024-06-09", core.SundayOffering, 100, 1),
		income(11, "2024-06-09", core.Tithe, 100, 2),
		income(12, "2024-06-09", core.Tithe, 100, 3),
		expense(13, "2024-06-09", "Utilities", 50, "water"),
		expense(14, "2024-06-09", "Utilities", 50, "power"),
		expense(15, "2024-06-09", "Education", 50, ""),
		income(16, "2024-06-08", core.Tithe, 100, 1),
		expense(17, "2024-06-10", "Supplies", 10, ""),
	}
	reversed := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		reversed[len(txs)-1-i] = tx
	}

	first := DisplayOrder(txs, members, language.English)
	second := DisplayOrder(txs, members, language.English)
	third := DisplayOrder(reversed, members, language.English)

	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, ids(first), ids(third))

	// Newest day first; within 06-09 income above expense, Tithe before
	// Sunday Offering, names descending; expense categories and memos
	// descending.
	assert.Equal(t, []int64{17, 12, 11, 10, 13, 14, 15, 16}, ids(first))
}

func TestDisplayOrderDoesNotMutateInput(t *testing.T) {
	txs := []core.Transaction{
		income(1, "2024-06-01", core.Tithe, 100, 1),
		income(2, "2024-06-02", core.Tithe, 100, 1),
	}
	_ = DisplayOrder(txs, nil, language.English)
	assert.Equal(t, []int64{1, 2}, ids(txs))
}

func TestIncomeOrderUnlistedCategoriesAfterListed(t *testing.T) {
	txs := []core.Transaction{
		income(1, "2024-06-09", "Zeta Fund", 1, 1),
		income(2, "2024-06-09", "Alpha Fund", 1, 1),
		income(3, "2024-06-09", core.OtherIncome, 1, 1),
		income(4, "2024-06-09", core.Tithe, 1, 1),
	}
	got := DisplayOrder(txs, []core.Member{{ID: 1, Name: "Kim"}}, language.English)
	assert.Equal(t, []int64{4, 3, 2, 1}, ids(got))
}

func TestIncomeOrderUsesLocaleCollation(t *testing.T) {
	members := []core.Member{{ID: 1, Name: "alice"}, {ID: 2, Name: "Bob"}}
	txs := []core.Transaction{
		income(1, "2024-06-09", core.Tithe, 1, 1),
		income(2, "2024-06-09", core.Tithe, 1, 2),
	}
	// Byte order would put "Bob" before "alice"; collation does not, so
	// descending order shows Bob first.
	got := DisplayOrder(txs, members, language.English)
	assert.Equal(t, []int64{2, 1}, ids(got))

	korean := []core.Member{{ID: 1, Name: "김민수"}, {ID: 2, Name: "이영희"}, {ID: 3, Name: "박철수"}}
	txs = append(txs, income(3, "2024-06-09", core.Tithe, 1, 3))
	got = DisplayOrder(txs, korean, language.Korean)
	assert.Equal(t, []int64{2, 3, 1}, ids(got))
}

func TestTodaySplit(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{
			income(1, "2024-06-09", core.Tithe, 1000, 1),
			expense(2, "2024-06-10", "Utilities", 400, ""),
			income(3, "2024-06-11", core.Tithe, 9999, 1),
		},
		Today: monday,
	}
	s := TodaySplit(in)
	assert.Equal(t, BalanceSplit{Previous: 1000, TodaysChange: -400, Today: 600}, s)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{
			income(1, "2024-06-09", core.Tithe, 1000, 1),
			income(2, "2023-03-01", core.BuildingOffering, 5000, 2),
			expense(3, "2024-06-10", "Utilities", 400, "power"),
			expense(4, "2024-01-10", "Snacks", 250, ""),
		},
		Members:           []core.Member{{ID: 1, Name: "Kim"}},
		ExpenseCategories: core.DefaultExpenseCategories(),
		Today:             monday,
		Locale:            language.Korean,
	}
	assert.Equal(t, Summarize(in), Summarize(in))
}

func TestAvailableYears(t *testing.T) {
	txs := []core.Transaction{
		income(1, "2022-05-01", core.Tithe, 1, 1),
		income(2, "2023-05-01", core.Tithe, 1, 1),
		income(3, "2023-07-01", core.Tithe, 1, 1),
		income(4, "2024-01-01", core.Tithe, 1, 1),
	}
	assert.Equal(t, []int{2024, 2023, 2022}, AvailableYears(txs, monday))
	assert.NotContains(t, AvailableYears(txs, monday), 2019)
	assert.Equal(t, []int{2024}, AvailableYears(nil, monday))

	// The current year is present even when only older years have data.
	assert.Equal(t, []int{2024, 2020}, AvailableYears([]core.Transaction{income(1, "2020-02-02", core.Tithe, 1, 1)}, monday))
}

func TestDanglingMemberResolvesToPlaceholder(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{income(1, "2024-06-09", core.Tithe, 1000, 42)},
		Members:      []core.Member{{ID: 1, Name: "Kim"}},
		Today:        monday,
	}
	s := Summarize(in)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, core.UnspecifiedMember, s.Rows[0].MemberName)
}

func TestCoreBreakdownCompleteness(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{
			income(1, "2024-06-09", core.Tithe, 1000, 1),
			income(2, "2024-06-10", core.Tithe, 500, 1),
			income(3, "2024-02-01", core.MissionOffering, 300, 1),
			income(4, "2023-12-31", core.SundayOffering, 99, 1),
		},
		Today: monday,
	}
	s := Summarize(in)

	all := FilterBreakdown(s.SelectedCore, AllCategories)
	require.Len(t, all, len(core.CoreRecurringCategories()))
	for i, c := range core.CoreRecurringCategories() {
		assert.Equal(t, c, all[i].Category)
	}
	assert.Equal(t, int64(1500), all[0].Amount)
	assert.Equal(t, int64(0), all[1].Amount)
	assert.Equal(t, int64(0), all[2].Amount)
	assert.Equal(t, int64(300), all[3].Amount)
	assert.Equal(t, "83.3", all[0].Share.String())
	assert.True(t, all[1].Share.IsZero())

	one := FilterBreakdown(s.SelectedCore, core.MissionOffering)
	require.Len(t, one, 1)
	assert.Equal(t, int64(300), one[0].Amount)
	assert.Empty(t, FilterBreakdown(s.SelectedCore, "Nope"))

	// The week window starts on Sunday 2024-06-09.
	assert.Equal(t, int64(1500), s.WeekCore[0].Amount)
	assert.Equal(t, int64(0), s.WeekCore[3].Amount)
}

func TestPeriodWindows(t *testing.T) {
	assert.Equal(t, Window{From: "2024-06-09", To: "2024-06-10"}, WeekWindow(monday))
	sunday := core.NewDate(2024, time.June, 9)
	assert.Equal(t, Window{From: "2024-06-09", To: "2024-06-09"}, WeekWindow(sunday))
	saturday := core.NewDate(2024, time.June, 1)
	assert.Equal(t, Window{From: "2024-05-26", To: "2024-06-01"}, WeekWindow(saturday))
	assert.Equal(t, Window{From: "2024-01-01", To: "2024-06-10"}, YearToDateWindow(monday))
	assert.Equal(t, Window{From: "2021-01-01", To: "2021-12-31"}, YearWindow(2021))
}

func TestSummarizeTotals(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{
			income(1, "2024-06-08", core.Tithe, 1000, 1),           // before week start
			income(2, "2024-06-09", core.BuildingOffering, 700, 1), // in week
			income(3, "2024-06-10", core.SpecialOffering, 300, 1),  // today
			expense(4, "2024-06-10", "Utilities", 400, ""),
			income(5, "2024-06-11", core.Tithe, 50, 1), // after today
			income(6, "2023-06-10", core.SpecialOffering, 20, 1),
			expense(7, "2023-01-02", "Snacks", 80, ""),
		},
		ExpenseCategories: []string{"Utilities", "Education"},
		Today:             monday,
		SelectedYear:      2023,
		Locale:            language.English,
	}
	s := Summarize(in)

	assert.Equal(t, "2024-06-10", s.Today)
	assert.Equal(t, 2023, s.SelectedYear)
	assert.Equal(t, PeriodTotals{Window: Window{"2024-06-09", "2024-06-10"}, Income: 1000, Expense: 400, Net: 600}, s.Week)
	assert.Equal(t, PeriodTotals{Window: Window{"2024-01-01", "2024-06-10"}, Income: 2000, Expense: 400, Net: 1600}, s.Year)
	assert.Equal(t, PeriodTotals{Window: Window{"2023-01-01", "2023-12-31"}, Income: 20, Expense: 80, Net: -60}, s.Selected)
	assert.Equal(t, SpecialTotals{Building: 700, Special: 300}, s.WeekSpecial)
	assert.Equal(t, SpecialTotals{Special: 20}, s.SelectedSpecial)

	require.Len(t, s.SelectedExpenses, 3)
	assert.Equal(t, "Utilities", s.SelectedExpenses[0].Category)
	assert.Equal(t, "Education", s.SelectedExpenses[1].Category)
	assert.Equal(t, "Snacks", s.SelectedExpenses[2].Category)
	assert.Equal(t, int64(80), s.SelectedExpenses[2].Amount)
	assert.Equal(t, "100", s.SelectedExpenses[2].Share.String())

	assert.Equal(t, []int{2024, 2023}, s.AvailableYears)
	assert.Equal(t, BalanceSplit{Previous: 1640, TodaysChange: -100, Today: 1540}, s.Balance)
}

func TestSelectedYearDefaultsToToday(t *testing.T) {
	s := Summarize(Input{Today: monday})
	assert.Equal(t, 2024, s.SelectedYear)
	assert.Equal(t, []int{2024}, s.AvailableYears)
	assert.Empty(t, s.Rows)
	assert.Equal(t, BalanceSplit{}, s.Balance)
	assert.Len(t, s.WeekCore, 4)
	assert.Equal(t, 0, s.Skipped)
}

func TestMalformedRecordsAreSkippedNotFatal(t *testing.T) {
	in := Input{
		Transactions: []core.Transaction{
			income(1, "not-a-date", core.Tithe, 1000, 1),
			income(2, "", core.Tithe, 1000, 1),
			income(3, "2024-13-01", core.Tithe, 1000, 1),
			income(4, "2024-06-10", core.Tithe, 0, 1),
			income(5, "2024-06-10", core.Tithe, 250, 1),
		},
		Today: monday,
	}
	var s Summary
	require.NotPanics(t, func() { s = Summarize(in) })

	assert.Equal(t, []int{2024}, s.AvailableYears)
	assert.Equal(t, BalanceSplit{Previous: 0, TodaysChange: 250, Today: 250}, s.Balance)
	assert.Equal(t, int64(250), s.Week.Income)
	assert.Equal(t, int64(250), s.Year.Income)
	assert.Equal(t, 4, s.Skipped)
	assert.Len(t, s.Rows, 5)
}

func TestMalformedRecordsDoNotMoveBalance(t *testing.T) {
	members := []core.Member{{ID: 1, Name: "Kim", Position: core.Deacon}}
	refund := core.Transaction{ID: 5, Type: "refund", Date: "2024-06-08", Category: "Refund", Amount: 300}
	in := Input{
		Transactions: []core.Transaction{
			income(1, "2024-06-09", core.Tithe, 1000, 1),
			income(2, "", core.Tithe, 5000, 1),
			income(3, "x-bad", core.Tithe, 7000, 1),
			expense(4, "2024-06-10", "Utilities", 300, ""),
			refund,
			income(6, "2024-06-10", core.Tithe, 0, 1),
		},
		Members: members,
		Today:   monday,
		Locale:  language.English,
	}
	s := Summarize(in)

	assert.Equal(t, BalanceSplit{Previous: 1000, TodaysChange: -300, Today: 700}, s.Balance)
	assert.Equal(t, int64(1000), s.Year.Income)
	assert.Equal(t, int64(300), s.Year.Expense)
	assert.Equal(t, 4, s.Skipped)

	// Unparsable dates sit on top of the view, at the end of the fold.
	assert.Equal(t, []int64{3, 2, 6, 4, 1, 5}, rowIDs(s.Rows))
	var balances []int64
	for _, r := range s.Rows {
		balances = append(balances, r.Balance)
	}
	assert.Equal(t, []int64{700, 700, 700, 700, 1000, 0}, balances)
	assert.Equal(t, s.Balance.Today, s.Rows[0].Balance)
}

func TestPage(t *testing.T) {
	rows := make([]Row, 45)
	for i := range rows {
		rows[i].ID = int64(i + 1)
	}

	p, pages := Page(rows, 1, 20)
	assert.Equal(t, 3, pages)
	assert.Len(t, p, 20)
	assert.Equal(t, int64(1), p[0].ID)

	p, _ = Page(rows, 3, 20)
	assert.Len(t, p, 5)
	assert.Equal(t, int64(41), p[0].ID)

	p, _ = Page(rows, 99, 20)
	assert.Equal(t, int64(41), p[0].ID)

	p, _ = Page(rows, 0, 0)
	assert.Len(t, p, 20)

	p, pages = Page(nil, 1, 20)
	assert.Empty(t, p)
	assert.Equal(t, 0, pages)
}
