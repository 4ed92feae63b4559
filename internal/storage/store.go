// Package storage persists the ledger state as named JSON slots plus a
// capped snapshot history.
package storage

import (
	"context"
	"errors"

	"churchbook/internal/core"
)

// Slot names under which the state is persisted.
const (
	SlotChurchName        = "church_name"
	SlotMembers           = "members"
	SlotTransactions      = "transactions"
	SlotExpenseCategories = "expense_categories"
	SlotPINHash           = "pin_hash"
)

// DefaultSnapshotLimit is the number of snapshots retained when no limit is given.
const DefaultSnapshotLimit = 50

// ErrSnapshotNotFound is returned by GetSnapshot for an unknown id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store loads and saves the full application state. Load on a fresh store
// returns a zero State; a nil ExpenseCategories means the registry was never
// saved.
type Store interface {
	Load(ctx context.Context) (core.State, error)
	Save(ctx context.Context, st core.State) error

	// PutSnapshot stores snap and prunes the history to the newest limit entries.
	PutSnapshot(ctx context.Context, snap core.Snapshot, limit int) error
	// ListSnapshots returns snapshots newest first.
	ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (core.Snapshot, error)

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
	Close() error
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultSnapshotLimit
	}
	return limit
}
