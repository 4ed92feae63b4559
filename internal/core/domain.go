package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Pastor          Position = "pastor"
	Elder           Position = "elder"
	SeniorDeaconess Position = "senior_deaconess"
	Deacon          Position = "deacon"
	Congregant      Position = "member"
)

// Income categories, in canonical display order.
const (
	Tithe                = "Tithe"
	SundayOffering       = "Sunday Offering"
	ThanksgivingOffering = "Thanksgiving Offering"
	MissionOffering      = "Mission Offering"
	BuildingOffering     = "Building Offering"
	SpecialOffering      = "Special Offering"
	OtherIncome          = "Other"
)

// UnspecifiedMember is shown when a member id is absent or no longer resolves.
const UnspecifiedMember = "Unspecified"

type (
	TxType   string
	Position string

	Member struct {
		ID       int64    `json:"id"`
		Name     string   `json:"name"`
		Position Position `json:"position"`
	}

	// Transaction is a single monetary event. Date is kept in its stored
	// YYYY-MM-DD form so that string order equals chronological order.
	Transaction struct {
		ID       int64  `json:"id"`
		Type     TxType `json:"type"`
		Date     string `json:"date"`
		Category string `json:"category"`
		Amount   int64  `json:"amount"`
		MemberID *int64 `json:"memberId,omitempty"`
		Memo     string `json:"memo,omitempty"`
	}

	// State is the full persisted application state.
	State struct {
		ChurchName        string
		Members           []Member
		Transactions      []Transaction
		ExpenseCategories []string
		PINHash           string
	}

	// Snapshot is a timestamped copy of the exportable subset of State.
	Snapshot struct {
		ID      string    `json:"id"`
		TakenAt time.Time `json:"timestamp"`
		Data    Dataset   `json:"data"`
	}

	// Dataset is the {members, transactions, expenseCategories} subset used
	// by export, import and snapshots.
	Dataset struct {
		Members           []Member      `json:"members"`
		Transactions      []Transaction `json:"transactions"`
		ExpenseCategories []string      `json:"expenseCategories"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidPosition = errors.New("invalid position")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown income category")
	ErrMemberRequired  = errors.New("income requires a member")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEntry  = errors.New("duplicate entry")
	ErrMemoTooLong     = errors.New("memo too long (max 200 characters)")
	ErrNameTooLong     = errors.New("name too long (max 50 characters)")
	ErrCategoryTooLong = errors.New("category too long (max 50 characters)")
)

// IncomeCategories returns the fixed income categories in canonical order.
func IncomeCategories() []string {
	return []string{Tithe, SundayOffering, ThanksgivingOffering, MissionOffering, BuildingOffering, SpecialOffering, OtherIncome}
}

// CoreRecurringCategories returns the income categories summed together as
// the recurring group in period summaries.
func CoreRecurringCategories() []string {
	return []string{Tithe, SundayOffering, ThanksgivingOffering, MissionOffering}
}

// SpecialCategories returns the two income categories tracked on their own.
func SpecialCategories() (building, special string) {
	return BuildingOffering, SpecialOffering
}

// DefaultExpenseCategories seeds the expense category registry.
func DefaultExpenseCategories() []string {
	return []string{"Utilities", "Mission Support", "Education", "Supplies", "Maintenance", "Relief"}
}

// Positions returns every valid member position.
func Positions() []Position {
	return []Position{Pastor, Elder, SeniorDeaconess, Deacon, Congregant}
}

func (p Position) Validate() error {
	if !slices.Contains(Positions(), p) {
		return fmt.Errorf("%w: %q", ErrInvalidPosition, string(p))
	}
	return nil
}

func (t TxType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
}

// Sign returns +1 for income, -1 for expense and 0 for unknown types.
func (t TxType) Sign() int64 {
	switch t {
	case Income:
		return 1
	case Expense:
		return -1
	default:
		return 0
	}
}

func (m Member) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len([]rune(name)) > 50 {
		return ErrNameTooLong
	}
	return m.Position.Validate()
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	category := strings.TrimSpace(t.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if len([]rune(category)) > 50 {
		return ErrCategoryTooLong
	}
	if len([]rune(t.Memo)) > 200 {
		return ErrMemoTooLong
	}
	if t.Type == Income {
		if t.MemberID == nil {
			return ErrMemberRequired
		}
		if !slices.Contains(IncomeCategories(), category) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
	}
	return nil
}

// Signed returns the transaction's contribution to a balance. Non-positive
// amounts and unknown types contribute nothing.
func (t Transaction) Signed() int64 {
	if t.Amount <= 0 {
		return 0
	}
	return t.Type.Sign() * t.Amount
}

// Dataset returns the exportable subset of the state.
func (s State) Dataset() Dataset {
	return Dataset{
		Members:           slices.Clone(s.Members),
		Transactions:      CloneTransactions(s.Transactions),
		ExpenseCategories: slices.Clone(s.ExpenseCategories),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{
		ChurchName:        s.ChurchName,
		Members:           slices.Clone(s.Members),
		Transactions:      CloneTransactions(s.Transactions),
		ExpenseCategories: slices.Clone(s.ExpenseCategories),
		PINHash:           s.PINHash,
	}
}

// CloneTransactions copies txs including the member id pointers.
func CloneTransactions(txs []Transaction) []Transaction {
	if txs == nil {
		return nil
	}
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		if t.MemberID != nil {
			id := *t.MemberID
			t.MemberID = &id
		}
		out[i] = t
	}
	return out
}

// MemberRef returns a pointer to id, for building transactions.
func MemberRef(id int64) *int64 {
	return &id
}
