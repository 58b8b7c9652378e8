// Package journal persists the engine's output trail to SQLite: every
// emitted fusion signal and every resolved whale outcome. The journal is
// append-only; it exists for auditing and offline review of decisions, not
// as an input to the engine.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/whalefuse/whalefuse/internal/models"
)

// Journal wraps the SQLite database holding signals and outcomes.
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY,
	market_id       TEXT NOT NULL,
	category        TEXT NOT NULL,
	direction       TEXT NOT NULL,
	prior           REAL NOT NULL,
	likelihood      REAL NOT NULL,
	posterior       REAL NOT NULL,
	confidence      REAL NOT NULL,
	size_multiplier REAL NOT NULL,
	whale_count     INTEGER NOT NULL,
	generated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id, generated_at);

CREATE TABLE IF NOT EXISTS outcomes (
	outcome_key TEXT PRIMARY KEY,
	wallet      TEXT NOT NULL,
	market_id   TEXT NOT NULL,
	category    TEXT NOT NULL,
	won         INTEGER NOT NULL,
	resolved_at TIMESTAMP NOT NULL
);
`

// Open creates or opens the journal database at path. Use ":memory:" for an
// ephemeral journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordSignal appends one fusion result.
func (j *Journal) RecordSignal(r *models.FusionResult) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid fusion result: %w", err)
	}
	_, err := j.db.Exec(
		`INSERT INTO signals (id, market_id, category, direction, prior, likelihood, posterior,
			confidence, size_multiplier, whale_count, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MarketID, string(r.Category), string(r.Direction),
		r.Prior, r.Likelihood, r.Posterior,
		r.Confidence, r.SizeMultiplier, r.WhaleCount, r.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record signal: %w", err)
	}
	return nil
}

// RecordOutcome appends one resolved whale outcome. Re-recording an already
// journaled outcome key is a no-op, mirroring the tracker's dedup contract.
func (j *Journal) RecordOutcome(outcomeKey, wallet, marketID string, category models.Category, won bool, resolvedAt time.Time) error {
	wonInt := 0
	if won {
		wonInt = 1
	}
	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO outcomes (outcome_key, wallet, market_id, category, won, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		outcomeKey, wallet, marketID, string(category), wonInt, resolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// SignalsForMarket returns the most recent signals for a market, newest
// first, at most limit rows.
func (j *Journal) SignalsForMarket(marketID string, limit int) ([]models.FusionResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(
		`SELECT id, market_id, category, direction, prior, likelihood, posterior,
			confidence, size_multiplier, whale_count, generated_at
		 FROM signals WHERE market_id = ? ORDER BY generated_at DESC LIMIT ?`,
		marketID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var results []models.FusionResult
	for rows.Next() {
		var r models.FusionResult
		var category, direction string
		if err := rows.Scan(&r.ID, &r.MarketID, &category, &direction,
			&r.Prior, &r.Likelihood, &r.Posterior,
			&r.Confidence, &r.SizeMultiplier, &r.WhaleCount, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		r.Category = models.Category(category)
		r.Direction = models.Direction(direction)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signal rows: %w", err)
	}
	return results, nil
}

// OutcomeCount returns the number of journaled outcomes for a wallet.
func (j *Journal) OutcomeCount(wallet string) (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM outcomes WHERE wallet = ?`, wallet).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
