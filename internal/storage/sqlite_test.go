package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"churchbook/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.ChurchName != "" || len(st.Members) != 0 || len(st.Transactions) != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if st.ExpenseCategories != nil {
		t.Fatalf("expected unset registry, got %v", st.ExpenseCategories)
	}
}

func TestSQLiteSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := core.State{
		ChurchName: "Grace Church",
		Members:    []core.Member{{ID: 1, Name: "Kim", Position: core.Elder}},
		Transactions: []core.Transaction{
			{ID: 10, Type: core.Income, Date: "2024-06-09", Category: core.Tithe, Amount: 1000, MemberID: core.MemberRef(1)},
			{ID: 11, Type: core.Expense, Date: "2024-06-10", Category: "Utilities", Amount: 400, Memo: "power"},
		},
		ExpenseCategories: []string{"Utilities"},
		PINHash:           "$2a$10$hash",
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Saving twice overwrites rather than duplicates.
	want.ChurchName = "Grace Community Church"
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ChurchName != want.ChurchName || got.PINHash != want.PINHash {
		t.Fatalf("scalar slots mismatch: %+v", got)
	}
	if len(got.Members) != 1 || got.Members[0] != want.Members[0] {
		t.Fatalf("members mismatch: %+v", got.Members)
	}
	if len(got.Transactions) != 2 || got.Transactions[0].MemberID == nil || *got.Transactions[0].MemberID != 1 {
		t.Fatalf("transactions mismatch: %+v", got.Transactions)
	}
	if got.Transactions[1].MemberID != nil || got.Transactions[1].Memo != "power" {
		t.Fatalf("expense mismatch: %+v", got.Transactions[1])
	}
	if len(got.ExpenseCategories) != 1 || got.ExpenseCategories[0] != "Utilities" {
		t.Fatalf("categories mismatch: %v", got.ExpenseCategories)
	}
}

func TestSQLiteEmptyRegistryStaysEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, core.State{ExpenseCategories: []string{}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ExpenseCategories == nil || len(got.ExpenseCategories) != 0 {
		t.Fatalf("expected empty non-nil registry, got %#v", got.ExpenseCategories)
	}
}

func TestSQLiteCorruptSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO slots (name, value) VALUES (?, ?)`, SlotMembers, `{"not":"an array"}`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Load(ctx); err == nil {
		t.Fatal("expected decode error for corrupt slot")
	}
}

func TestSQLiteSnapshotsArePruned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		snap := core.Snapshot{
			ID:      fmt.Sprintf("snap-%d", i),
			TakenAt: base.Add(time.Duration(i) * time.Hour),
			Data:    core.Dataset{Members: []core.Member{{ID: int64(i), Name: "M"}}},
		}
		if err := s.PutSnapshot(ctx, snap, 3); err != nil {
			t.Fatalf("PutSnapshot %d: %v", i, err)
		}
	}

	list, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(list))
	}
	for i, want := range []string{"snap-4", "snap-3", "snap-2"} {
		if list[i].ID != want {
			t.Fatalf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
	if !list[0].TakenAt.Equal(base.Add(4 * time.Hour)) {
		t.Fatalf("unexpected timestamp %v", list[0].TakenAt)
	}

	got, err := s.GetSnapshot(ctx, "snap-3")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(got.Data.Members) != 1 || got.Data.Members[0].ID != 3 {
		t.Fatalf("unexpected snapshot data %+v", got.Data)
	}

	if _, err := s.GetSnapshot(ctx, "snap-0"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound for pruned snapshot, got %v", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := newTestStore(t)
	v, dirty, err := SchemaVersion(s.Path())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 || dirty {
		t.Fatalf("unexpected version=%d dirty=%v", v, dirty)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
