package ledger

import (
	"slices"

	"churchbook/internal/core"
)

// Row is one ledger line: the transaction, its resolved member name and the
// account balance as of that transaction.
type Row struct {
	core.Transaction
	MemberName string `json:"memberName"`
	Balance    int64  `json:"balance"`
}

// BalanceSplit separates the balance carried from before today from today's
// net change.
type BalanceSplit struct {
	Previous     int64 `json:"previousBalance"`
	TodaysChange int64 `json:"todaysChange"`
	Today        int64 `json:"todaysBalance"`
}

// runningRows folds balances over the chronological order and returns the
// rows most recent first. Rows with an unparsable date carry the balance
// without changing it.
func runningRows(o *orderer, txs []core.Transaction) []Row {
	ordered := core.CloneTransactions(txs)
	slices.SortStableFunc(ordered, o.chronological)

	rows := make([]Row, len(ordered))
	var balance int64
	for i, t := range ordered {
		if o.validDate(t.Date) {
			balance += t.Signed()
		}
		rows[len(ordered)-1-i] = Row{
			Transaction: t,
			MemberName:  o.memberName(t.MemberID),
			Balance:     balance,
		}
	}
	return rows
}

// RunningBalances returns ledger rows most recent first, each carrying the
// balance after that transaction.
func RunningBalances(in Input) []Row {
	return runningRows(newOrderer(in.Members, in.Locale), in.Transactions)
}

// splitToday partitions entries by comparison with today. Entries without a
// valid date are excluded.
func splitToday(entries []entry, today string) BalanceSplit {
	var s BalanceSplit
	for _, e := range entries {
		if !e.valid {
			continue
		}
		switch {
		case e.tx.Date < today:
			s.Previous += e.tx.Signed()
		case e.tx.Date == today:
			s.TodaysChange += e.tx.Signed()
		}
	}
	s.Today = s.Previous + s.TodaysChange
	return s
}

// TodaySplit computes the previous/today balance split for in.Today.
func TodaySplit(in Input) BalanceSplit {
	return splitToday(classify(in.Transactions), in.Today.String())
}
