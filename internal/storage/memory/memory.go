// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"churchbook/internal/core"
	"churchbook/internal/storage"
)

// SeedFile holds one expense category per line; blank lines and # comments
// are ignored.
const SeedFile = "seed_expense_categories.txt"

type Store struct {
	mu        sync.Mutex
	state     core.State
	snapshots []core.Snapshot // newest first
}

var _ storage.Store = (*Store)(nil)

// New returns a store whose expense registry starts as categories. A nil
// slice leaves the registry unset.
func New(categories []string) *Store {
	s := &Store{}
	if categories != nil {
		s.state.ExpenseCategories = dedupe(categories)
	}
	return s
}

// ReadSeed returns the categories listed in base/SeedFile, or nil when the
// file is missing or lists none.
func ReadSeed(base string) []string {
	return readLines(filepath.Join(base, SeedFile))
}

func (s *Store) Load(_ context.Context) (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *Store) Save(_ context.Context, st core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clone()
	return nil
}

func (s *Store) PutSnapshot(_ context.Context, snap core.Snapshot, limit int) error {
	if limit <= 0 {
		limit = storage.DefaultSnapshotLimit
	}
	snap.Data = cloneDataset(snap.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	slices.SortStableFunc(s.snapshots, func(a, b core.Snapshot) int {
		if c := b.TakenAt.Compare(a.TakenAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if len(s.snapshots) > limit {
		s.snapshots = s.snapshots[:limit]
	}
	return nil
}

func (s *Store) ListSnapshots(_ context.Context) ([]core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Snapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		snap.Data = cloneDataset(snap.Data)
		out[i] = snap
	}
	return out, nil
}

func (s *Store) GetSnapshot(_ context.Context, id string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snapshots {
		if snap.ID == id {
			snap.Data = cloneDataset(snap.Data)
			return snap, nil
		}
	}
	return core.Snapshot{}, fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, id)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneDataset(d core.Dataset) core.Dataset {
	return core.State{
		Members:           d.Members,
		Transactions:      d.Transactions,
		ExpenseCategories: d.ExpenseCategories,
	}.Clone().Dataset()
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil
	}
	return dedupe(out)
}

// dedupe trims entries and drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
