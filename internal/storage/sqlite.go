package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"churchbook/internal/core"

	_ "modernc.org/sqlite"
)

// snapshotTimeLayout has fixed width so taken_at sorts lexicographically.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Load reads every slot. Absent slots leave the matching State field zero.
func (s *SQLiteStore) Load(ctx context.Context) (core.State, error) {
	var st core.State
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM slots`)
	if err != nil {
		return st, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return st, fmt.Errorf("scan slot: %w", err)
		}
		if err := decodeSlot(&st, name, []byte(value)); err != nil {
			return st, err
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate slots: %w", err)
	}
	return st, nil
}

// Save writes every slot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st core.State) error {
	slots, err := encodeSlots(st)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(snapshotTimeLayout)
	for _, name := range slotOrder {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			name, string(slots[name]), now)
		if err != nil {
			return fmt.Errorf("write slot %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "State saved to SQLite",
		"members", len(st.Members),
		"transactions", len(st.Transactions),
		"expense_categories", len(st.ExpenseCategories))
	return nil
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap core.Snapshot, limit int) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, taken_at, data) VALUES (?, ?, ?)`,
		snap.ID, snap.TakenAt.UTC().Format(snapshotTimeLayout), string(data)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
		)`, effectiveLimit(limit))
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	pruned, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Snapshot saved to SQLite", "id", snap.ID, "pruned", pruned)
	return nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, taken_at, data FROM snapshots ORDER BY taken_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []core.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (core.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, taken_at, data FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return snap, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (core.Snapshot, error) {
	var (
		snap    core.Snapshot
		takenAt string
		data    string
	)
	if err := sc.Scan(&snap.ID, &takenAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, err
		}
		return snap, fmt.Errorf("scan snapshot: %w", err)
	}
	t, err := time.Parse(snapshotTimeLayout, takenAt)
	if err != nil {
		return snap, fmt.Errorf("parse snapshot time %q: %w", takenAt, err)
	}
	snap.TakenAt = t
	if err := json.Unmarshal([]byte(data), &snap.Data); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	return snap, nil
}
