// Package barstore persists and queries OHLCV bars keyed by
// (source, symbol, timeframe, time).
package barstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/alejandrodnm/quantrail/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
    source    TEXT    NOT NULL,
    symbol    TEXT    NOT NULL,
    timeframe TEXT    NOT NULL,
    time_ms   INTEGER NOT NULL,
    open      REAL    NOT NULL,
    high      REAL    NOT NULL,
    low       REAL    NOT NULL,
    close     REAL    NOT NULL,
    volume    REAL    NOT NULL,
    PRIMARY KEY (source, symbol, timeframe, time_ms)
);

CREATE INDEX IF NOT EXISTS idx_bars_range ON bars(source, symbol, timeframe, time_ms);
`

// Store is a ports.BarStore backed by a pure-Go SQLite file, mirroring the
// teacher's single-writer storage pattern (SetMaxOpenConns(1)).
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("barstore.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("barstore.Open: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns bars in [t0Ms, t1Ms] ordered by time ascending.
func (s *Store) Get(ctx context.Context, source, symbol string, tf domain.Timeframe, t0Ms, t1Ms int64) ([]domain.Bar, error) {
	if t0Ms > t1Ms {
		return []domain.Bar{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT time_ms, open, high, low, close, volume FROM bars
		WHERE source = ? AND symbol = ? AND timeframe = ? AND time_ms BETWEEN ? AND ?
		ORDER BY time_ms ASC`,
		source, symbol, string(tf), t0Ms, t1Ms,
	)
	if err != nil {
		return nil, fmt.Errorf("barstore.Get: query: %w", err)
	}
	defer rows.Close()

	bars := make([]domain.Bar, 0)
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.TimeMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("barstore.Get: scan: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("barstore.Get: rows: %w", err)
	}
	return bars, nil
}

// Insert appends bars atomically, rejecting any bar that collides with an
// existing (source, symbol, timeframe, time_ms) row. Exchanges only emit
// immutable closed bars, so idempotent insertion makes gap-fill retries
// safe: a retry that re-inserts an already-persisted bar fails cleanly
// instead of corrupting state.
func (s *Store) Insert(ctx context.Context, source, symbol string, tf domain.Timeframe, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("barstore.Insert: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (source, symbol, timeframe, time_ms, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("barstore.Insert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, source, symbol, string(tf), b.TimeMs, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("barstore.Insert: bar at %d already exists for %s/%s/%s: %w", b.TimeMs, source, symbol, tf, err)
			}
			return fmt.Errorf("barstore.Insert: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("barstore.Insert: commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
