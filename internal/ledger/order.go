package ledger

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"churchbook/internal/core"
)

// unlisted ranks income categories that are not in the priority list.
const unlisted = 1 << 30

// orderer holds the per-call collator and member names. A collator keeps
// internal buffers, so one is built for every call and never shared.
type orderer struct {
	coll     *collate.Collator
	names    map[int64]string
	priority map[string]int
	dates    map[string]bool
}

func newOrderer(members []core.Member, tag language.Tag) *orderer {
	o := &orderer{
		coll:     collate.New(tag),
		names:    make(map[int64]string, len(members)),
		priority: make(map[string]int),
		dates:    make(map[string]bool),
	}
	for _, m := range members {
		o.names[m.ID] = m.Name
	}
	for i, c := range core.IncomeCategories() {
		o.priority[c] = i
	}
	return o
}

// memberName resolves a weak member reference. Absent and dangling ids
// both resolve to core.UnspecifiedMember.
func (o *orderer) memberName(id *int64) string {
	if id == nil {
		return core.UnspecifiedMember
	}
	if name, ok := o.names[*id]; ok {
		return name
	}
	return core.UnspecifiedMember
}

func (o *orderer) rank(category string) int {
	if p, ok := o.priority[category]; ok {
		return p
	}
	return unlisted
}

func typeRank(t core.TxType) int {
	switch t {
	case core.Income:
		return 0
	case core.Expense:
		return 1
	default:
		return 2
	}
}

// validDate reports whether date parses, caching the answer per string.
func (o *orderer) validDate(date string) bool {
	ok, seen := o.dates[date]
	if !seen {
		_, err := core.ParseDate(date)
		ok = err == nil
		o.dates[date] = ok
	}
	return ok
}

// display orders a before b when a is shown above b in the ledger view:
// unparsable dates on top, then newest date first; within a day income
// above expense; income by category priority then member name descending;
// expense by category then memo, both descending; id ascending last. Ids
// are unique, so the order is total.
func (o *orderer) display(a, b core.Transaction) int {
	if va, vb := o.validDate(a.Date), o.validDate(b.Date); va != vb {
		if !va {
			return -1
		}
		return 1
	}
	if c := strings.Compare(b.Date, a.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(typeRank(a.Type), typeRank(b.Type)); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
		return c
	}
	switch a.Type {
	case core.Income:
		ra, rb := o.rank(a.Category), o.rank(b.Category)
		if c := cmp.Compare(ra, rb); c != 0 {
			return c
		}
		if ra == unlisted {
			if c := o.coll.CompareString(a.Category, b.Category); c != 0 {
				return c
			}
		}
		if c := o.coll.CompareString(o.memberName(b.MemberID), o.memberName(a.MemberID)); c != 0 {
			return c
		}
	case core.Expense:
		if c := o.coll.CompareString(b.Category, a.Category); c != 0 {
			return c
		}
		if c := o.coll.CompareString(b.Memo, a.Memo); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}

// chronological is the exact reverse of display, so same-day expenses are
// applied before same-day income when folding balances and unparsable
// dates come last.
func (o *orderer) chronological(a, b core.Transaction) int {
	return o.display(b, a)
}

// DisplayOrder returns a sorted copy of txs, most recent first.
func DisplayOrder(txs []core.Transaction, members []core.Member, tag language.Tag) []core.Transaction {
	o := newOrderer(members, tag)
	out := core.CloneTransactions(txs)
	slices.SortStableFunc(out, o.display)
	return out
}

// ChronologicalOrder returns a sorted copy of txs in the order balances
// are accumulated (the reverse of DisplayOrder).
func ChronologicalOrder(txs []core.Transaction, members []core.Member, tag language.Tag) []core.Transaction {
	o := newOrderer(members, tag)
	out := core.CloneTransactions(txs)
	slices.SortStableFunc(out, o.chronological)
	return out
}
