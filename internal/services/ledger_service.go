// Package services owns the ledger state and every operation that changes
// it. Handlers, the admin CLI and the snapshot worker all go through
// LedgerService; nothing else touches the store.
package services

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"churchbook/internal/cache"
	"churchbook/internal/core"
	"churchbook/internal/ledger"
	"churchbook/internal/log"
	"churchbook/internal/storage"
	"churchbook/internal/transfer"
)

const maxChurchNameLength = 50

// Publisher announces state changes. The AMQP client implements it.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, revision int64, reason string) error
}

type Options struct {
	Locale        language.Tag
	Location      *time.Location
	SnapshotLimit int
	CacheSize     int
	CacheTTL      time.Duration
	// Publisher may be nil, in which case changes are not announced.
	Publisher Publisher
	Logger    *log.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// StateView is the client-facing state. The PIN hash never leaves the service.
type StateView struct {
	ChurchName        string             `json:"churchName"`
	Members           []core.Member      `json:"members"`
	Transactions      []core.Transaction `json:"transactions"`
	ExpenseCategories []string           `json:"expenseCategories"`
	PINSet            bool               `json:"pinSet"`
	Revision          int64              `json:"revision"`
}

type LedgerService struct {
	store     storage.Store
	opts      Options
	logger    *log.Logger
	summaries *cache.LRUCache[ledger.Summary]

	mu       sync.RWMutex
	state    core.State
	revision int64
}

// NewLedgerService loads the persisted state. A store that never saved an
// expense registry starts with core.DefaultExpenseCategories.
func NewLedgerService(ctx context.Context, store storage.Store, opts Options) (*LedgerService, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = storage.DefaultSnapshotLimit
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 32
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &LedgerService{
		store:     store,
		opts:      opts,
		logger:    opts.Logger.WithComponent(log.ComponentLedger),
		summaries: cache.NewLRUCache[ledger.Summary](opts.CacheSize, opts.CacheTTL),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory state with what the store holds.
func (s *LedgerService) Reload(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if st.ExpenseCategories == nil {
		st.ExpenseCategories = core.DefaultExpenseCategories()
	}

	s.mu.Lock()
	s.state = st
	s.revision++
	s.mu.Unlock()
	s.summaries.Purge()
	return nil
}

// SummaryCache exposes the summary cache for periodic cleanup.
func (s *LedgerService) SummaryCache() *cache.LRUCache[ledger.Summary] {
	return s.summaries
}

func (s *LedgerService) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Today returns the current date in the configured time zone.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.opts.Now().In(s.opts.Location))
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) State(_ context.Context) StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.Clone()
	return StateView{
		ChurchName:        st.ChurchName,
		Members:           nonNil(st.Members),
		Transactions:      ledger.DisplayOrder(st.Transactions, st.Members, s.opts.Locale),
		ExpenseCategories: nonNil(st.ExpenseCategories),
		PINSet:            st.PINHash != "",
		Revision:          s.revision,
	}
}

// Summary returns every derived view for year (0 selects the current
// year). The result is shared with the cache and must not be modified.
func (s *LedgerService) Summary(ctx context.Context, year int) ledger.Summary {
	today := s.Today()

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := fmt.Sprintf("%d|%s|%d", s.revision, today, year)
	if sum, ok := s.summaries.Get(key); ok {
		return sum
	}

	sum := ledger.Summarize(ledger.Input{
		Transactions:      s.state.Transactions,
		Members:           s.state.Members,
		ExpenseCategories: s.state.ExpenseCategories,
		Today:             today,
		SelectedYear:      year,
		Locale:            s.opts.Locale,
	})
	if sum.Skipped > 0 {
		s.logger.WarnContext(ctx, "Malformed transactions left out of aggregates",
			"skipped", sum.Skipped, log.FieldRevision, s.revision)
	}
	s.summaries.Set(key, sum)
	return sum
}

// mutate applies fn to a copy of the state, persists the copy and only then
// makes it current.
func (s *LedgerService) mutate(ctx context.Context, reason string, fn func(st *core.State) error) error {
	s.mu.Lock()
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save state: %w", err)
	}
	s.state = next
	s.revision++
	rev := s.revision
	s.mu.Unlock()

	s.summaries.Purge()
	s.publish(ctx, rev, reason)
	return nil
}

func (s *LedgerService) publish(ctx context.Context, rev int64, reason string) {
	if s.opts.Publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping change notification", log.FieldRevision, rev)
		return
	}
	if err := s.opts.Publisher.PublishLedgerChanged(ctx, rev, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.NewFields().WithRevision(rev).WithError(err).ToSlice()...)
	}
}

// newID returns a millisecond timestamp, bumped past every id in use.
func (s *LedgerService) newID(used []int64) int64 {
	id := s.opts.Now().UnixMilli()
	if len(used) > 0 {
		if m := slices.Max(used); id <= m {
			id = m + 1
		}
	}
	return id
}

func (s *LedgerService) SetChurchName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxChurchNameLength {
		return core.ErrNameTooLong
	}
	return s.mutate(ctx, "church_name.set", func(st *core.State) error {
		st.ChurchName = name
		return nil
	})
}

// Members

func (s *LedgerService) AddMember(ctx context.Context, name string, position core.Position) (core.Member, error) {
	m := core.Member{Name: strings.TrimSpace(name), Position: position}
	if m.Position == "" {
		m.Position = core.Congregant
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}

	err := s.mutate(ctx, "member.add", func(st *core.State) error {
		m.ID = s.newID(memberIDs(st.Members))
		st.Members = append(st.Members, m)
		return nil
	})
	if err != nil {
		return core.Member{}, err
	}
	s.logger.InfoContext(ctx, "Member added", log.FieldMemberID, m.ID)
	return m, nil
}

func (s *LedgerService) UpdateMember(ctx context.Context, m core.Member) (core.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	err := s.mutate(ctx, "member.update", func(st *core.State) error {
		i := slices.IndexFunc(st.Members, func(x core.Member) bool { return x.ID == m.ID })
		if i < 0 {
			return fmt.Errorf("member %d: %w", m.ID, core.ErrNotFound)
		}
		st.Members[i] = m
		return nil
	})
	if err != nil {
		return core.Member{}, err
	}
	return m, nil
}

// DeleteMember removes the member from the roster. Transactions keep the
// id and resolve it to the placeholder name.
func (s *LedgerService) DeleteMember(ctx context.Context, id int64, pin string) error {
	return s.mutate(ctx, "member.delete", func(st *core.State) error {
		if err := checkPIN(st.PINHash, pin); err != nil {
			return err
		}
		i := slices.IndexFunc(st.Members, func(x core.Member) bool { return x.ID == id })
		if i < 0 {
			return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
		}
		st.Members = slices.Delete(st.Members, i, i+1)
		return nil
	})
}

// Transactions

func normalizeTransaction(tx core.Transaction) core.Transaction {
	tx.Date = strings.TrimSpace(tx.Date)
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Memo = strings.TrimSpace(tx.Memo)
	return tx
}

// checkReferences verifies that a referenced member exists and that an
// expense category is registered. Only fields that differ from prev are
// checked, so records whose member or category was later deleted stay
// editable.
func checkReferences(st *core.State, tx core.Transaction, prev *core.Transaction) error {
	if tx.MemberID != nil && (prev == nil || prev.MemberID == nil || *prev.MemberID != *tx.MemberID) {
		if !slices.ContainsFunc(st.Members, func(m core.Member) bool { return m.ID == *tx.MemberID }) {
			return fmt.Errorf("%w: %d", ErrUnknownMember, *tx.MemberID)
		}
	}
	if tx.Type == core.Expense && (prev == nil || prev.Category != tx.Category || prev.Type != tx.Type) {
		if !slices.Contains(st.ExpenseCategories, tx.Category) {
			return fmt.Errorf("%w: %q", ErrUnknownExpenseCategory, tx.Category)
		}
	}
	return nil
}

func (s *LedgerService) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = normalizeTransaction(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.mutate(ctx, "transaction.add", func(st *core.State) error {
		if err := checkReferences(st, tx, nil); err != nil {
			return err
		}
		tx.ID = s.newID(transactionIDs(st.Transactions))
		st.Transactions = append(st.Transactions, tx)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount).WithOperation(log.OpCreate).ToSlice()...)
	return tx, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction, pin string) (core.Transaction, error) {
	tx = normalizeTransaction(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.mutate(ctx, "transaction.update", func(st *core.State) error {
		if err := checkPIN(st.PINHash, pin); err != nil {
			return err
		}
		i := slices.IndexFunc(st.Transactions, func(x core.Transaction) bool { return x.ID == tx.ID })
		if i < 0 {
			return fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
		}
		if err := checkReferences(st, tx, &st.Transactions[i]); err != nil {
			return err
		}
		st.Transactions[i] = tx
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount).WithOperation(log.OpUpdate).ToSlice()...)
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64, pin string) error {
	var removed core.Transaction
	err := s.mutate(ctx, "transaction.delete", func(st *core.State) error {
		if err := checkPIN(st.PINHash, pin); err != nil {
			return err
		}
		i := slices.IndexFunc(st.Transactions, func(x core.Transaction) bool { return x.ID == id })
		if i < 0 {
			return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
		}
		removed = st.Transactions[i]
		st.Transactions = slices.Delete(st.Transactions, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.NewFields().WithTransaction(removed.ID, string(removed.Type), removed.Category, removed.Amount).WithOperation(log.OpDelete).ToSlice()...)
	return nil
}

// Expense categories

func (s *LedgerService) AddExpenseCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	if utf8.RuneCountInString(name) > 50 {
		return core.ErrCategoryTooLong
	}
	return s.mutate(ctx, "expense_category.add", func(st *core.State) error {
		if slices.Contains(st.ExpenseCategories, name) {
			return fmt.Errorf("expense category %q: %w", name, core.ErrDuplicateEntry)
		}
		st.ExpenseCategories = append(st.ExpenseCategories, name)
		return nil
	})
}

// DeleteExpenseCategory removes name from the registry. Existing expenses
// keep the category.
func (s *LedgerService) DeleteExpenseCategory(ctx context.Context, name, pin string) error {
	return s.mutate(ctx, "expense_category.delete", func(st *core.State) error {
		if err := checkPIN(st.PINHash, pin); err != nil {
			return err
		}
		i := slices.Index(st.ExpenseCategories, name)
		if i < 0 {
			return fmt.Errorf("expense category %q: %w", name, core.ErrNotFound)
		}
		st.ExpenseCategories = slices.Delete(st.ExpenseCategories, i, i+1)
		return nil
	})
}

// PIN

// SetPIN sets or replaces the PIN. Replacing requires the current one.
func (s *LedgerService) SetPIN(ctx context.Context, current, next string) error {
	if err := validatePIN(next); err != nil {
		return err
	}
	hash, err := hashPIN(next)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "pin.set", func(st *core.State) error {
		if err := checkPIN(st.PINHash, current); err != nil {
			return err
		}
		st.PINHash = hash
		return nil
	})
}

// VerifyPIN checks pin against the stored hash. With no PIN set any value passes.
func (s *LedgerService) VerifyPIN(_ context.Context, pin string) error {
	s.mu.RLock()
	hash := s.state.PINHash
	s.mu.RUnlock()
	return checkPIN(hash, pin)
}

// Snapshots

func (s *LedgerService) TakeSnapshot(ctx context.Context) (core.Snapshot, error) {
	s.mu.RLock()
	data := s.state.Dataset()
	s.mu.RUnlock()
	return s.putSnapshot(ctx, data)
}

func (s *LedgerService) putSnapshot(ctx context.Context, data core.Dataset) (core.Snapshot, error) {
	snap := core.Snapshot{ID: uuid.NewString(), TakenAt: s.opts.Now().UTC(), Data: data}
	if err := s.store.PutSnapshot(ctx, snap, s.opts.SnapshotLimit); err != nil {
		return core.Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot taken", log.FieldSnapshotID, snap.ID,
		"transactions", len(data.Transactions))
	return snap, nil
}

func (s *LedgerService) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	return s.store.ListSnapshots(ctx)
}

func (s *LedgerService) GetSnapshot(ctx context.Context, id string) (core.Snapshot, error) {
	return s.store.GetSnapshot(ctx, id)
}

// RestoreSnapshot replaces members, transactions and the expense registry
// with the snapshot's. The replaced data is snapshotted first.
func (s *LedgerService) RestoreSnapshot(ctx context.Context, id, pin string) error {
	if err := s.VerifyPIN(ctx, pin); err != nil {
		return err
	}
	snap, err := s.store.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	return s.replaceDataset(ctx, log.OpRestore, "snapshot.restore", snap.Data, pin)
}

// Import / export

// Export writes the members, transactions and expense registry.
func (s *LedgerService) Export(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	data := s.state.Dataset()
	s.mu.RUnlock()
	if err := transfer.Encode(w, data); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Dataset exported", log.FieldOperation, log.OpExport,
		"members", len(data.Members), "transactions", len(data.Transactions))
	return nil
}

// Import replaces the dataset with the document read from r. A document
// that fails validation leaves the state untouched. A missing registry
// keeps the current one.
func (s *LedgerService) Import(ctx context.Context, r io.Reader, pin string) error {
	if err := s.VerifyPIN(ctx, pin); err != nil {
		return err
	}
	doc, err := transfer.Decode(r)
	if err != nil {
		return err
	}
	return s.replaceDataset(ctx, log.OpImport, "import", doc, pin)
}

func (s *LedgerService) replaceDataset(ctx context.Context, op, reason string, data core.Dataset, pin string) error {
	if _, err := s.TakeSnapshot(ctx); err != nil {
		return fmt.Errorf("snapshot before %s: %w", reason, err)
	}
	err := s.mutate(ctx, reason, func(st *core.State) error {
		if err := checkPIN(st.PINHash, pin); err != nil {
			return err
		}
		st.Members = nonNil(slices.Clone(data.Members))
		st.Transactions = nonNil(core.CloneTransactions(data.Transactions))
		if data.ExpenseCategories != nil {
			st.ExpenseCategories = slices.Clone(data.ExpenseCategories)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Dataset replaced", log.FieldOperation, op,
		"members", len(data.Members), "transactions", len(data.Transactions))
	return nil
}

// Close closes the store and, when it supports it, the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.opts.Publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}

func memberIDs(ms []core.Member) []int64 {
	ids := make([]int64, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

func transactionIDs(txs []core.Transaction) []int64 {
	ids := make([]int64, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
