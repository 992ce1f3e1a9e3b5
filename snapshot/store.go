package snapshot

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    mid            REAL    NOT NULL,
    divergence_bps REAL    NOT NULL DEFAULT 0,
    regime_flags   INTEGER NOT NULL DEFAULT 0,
    block_ref      INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS swaps (
    id          TEXT PRIMARY KEY,
    is_base_in  INTEGER NOT NULL,
    amount_in   REAL    NOT NULL,
    amount_out  REAL    NOT NULL,
    leftover    REAL    NOT NULL DEFAULT 0,
    fee_bps     REAL    NOT NULL,
    partial     INTEGER NOT NULL DEFAULT 0,
    reason      TEXT    NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rebalances (
    id            TEXT PRIMARY KEY,
    old_target    REAL NOT NULL,
    new_target    REAL NOT NULL,
    price         REAL NOT NULL,
    deviation_bps REAL NOT NULL,
    created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_at  ON snapshots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_swaps_at      ON swaps(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rebalances_at ON rebalances(created_at DESC);
`

// SwapRecord is one settled trade for the audit log.
type SwapRecord struct {
	ID        string
	IsBaseIn  bool
	AmountIn  float64
	AmountOut float64
	Leftover  float64
	FeeBps    float64
	Partial   bool
	Reason    string
	At        time.Time
}

// RebalanceRecord is one committed target update.
type RebalanceRecord struct {
	ID           string
	OldTarget    float64
	NewTarget    float64
	Price        float64
	DeviationBps float64
	At           time.Time
}

// Store is the SQLite-backed audit log. The in-memory snapshot held by the
// engine stays authoritative; the store only appends history.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the history database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// AppendSnapshot records a settled pricing context.
func (s *Store) AppendSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (mid, divergence_bps, regime_flags, block_ref, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.Mid, snap.DivergenceBps, snap.RegimeFlags, snap.BlockRef, snap.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// AppendSwap records a settled trade. Assigns an ID when absent.
func (s *Store) AppendSwap(rec SwapRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO swaps (id, is_base_in, amount_in, amount_out, leftover, fee_bps, partial, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IsBaseIn, rec.AmountIn, rec.AmountOut, rec.Leftover, rec.FeeBps, rec.Partial, rec.Reason, rec.At.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("append swap: %w", err)
	}
	return rec.ID, nil
}

// AppendRebalance records a committed target update. Assigns an ID when
// absent.
func (s *Store) AppendRebalance(rec RebalanceRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO rebalances (id, old_target, new_target, price, deviation_bps, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OldTarget, rec.NewTarget, rec.Price, rec.DeviationBps, rec.At.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("append rebalance: %w", err)
	}
	return rec.ID, nil
}

// RecentRebalances returns up to n most recent committed updates.
func (s *Store) RecentRebalances(n int) ([]RebalanceRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, old_target, new_target, price, deviation_bps, created_at FROM rebalances ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query rebalances: %w", err)
	}
	defer rows.Close()

	var out []RebalanceRecord
	for rows.Next() {
		var rec RebalanceRecord
		if err := rows.Scan(&rec.ID, &rec.OldTarget, &rec.NewTarget, &rec.Price, &rec.DeviationBps, &rec.At); err != nil {
			return nil, fmt.Errorf("scan rebalance: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentSwaps returns up to n most recent settled trades.
func (s *Store) RecentSwaps(n int) ([]SwapRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, is_base_in, amount_in, amount_out, leftover, fee_bps, partial, reason, created_at FROM swaps ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()

	var out []SwapRecord
	for rows.Next() {
		var rec SwapRecord
		if err := rows.Scan(&rec.ID, &rec.IsBaseIn, &rec.AmountIn, &rec.AmountOut, &rec.Leftover, &rec.FeeBps, &rec.Partial, &rec.Reason, &rec.At); err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
