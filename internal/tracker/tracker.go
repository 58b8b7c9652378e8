// Package tracker maintains the persistent per-whale performance records:
// win/loss counters, a bounded window of recent outcomes, category-specific
// accuracy, rolling EMA weight, and the latest lead score.
//
// The tracker is the sole writer of WhaleStats. Access is safe for
// interleaved decision cycles: concurrent outcome recordings for different
// wallets never corrupt each other, and a persisted snapshot is always either
// fully pre-update or fully post-update. Persistence uses an atomic
// write-to-temp-then-rename so a partial write can never corrupt the state
// file. A snapshot that fails to parse or violates an invariant is refused,
// not silently discarded; recovery requires an explicit Reset.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/whalefuse/whalefuse/internal/models"
)

// ErrDuplicateOutcome is returned when an outcome key has already been
// applied. Callers treat it as a logged no-op, never as a failure.
var ErrDuplicateOutcome = errors.New("outcome already recorded")

// CorruptStateError reports a persisted snapshot that cannot be trusted.
// The in-memory state is left untouched when it occurs.
type CorruptStateError struct {
	Path   string
	Reason string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt whale state file %s: %s", e.Path, e.Reason)
}

// Tracker is the thread-safe store of wallet → WhaleStats.
type Tracker struct {
	mu      sync.RWMutex
	whales  map[string]*models.WhaleStats
	applied map[string]struct{} // outcome keys already recorded

	windowSize int
	emaAlpha   float64
	filePath   string
}

// persistenceFile is the on-disk JSON document. It round-trips exactly.
type persistenceFile struct {
	Version         string                        `json:"version"`
	SavedAt         time.Time                     `json:"saved_at"`
	Whales          map[string]*models.WhaleStats `json:"whales"`
	AppliedOutcomes []string                      `json:"applied_outcomes"`
}

// New creates a Tracker with the given recent-window size and EMA smoothing
// factor. If filePath is empty, an OS-appropriate tmp location is used.
func New(windowSize int, emaAlpha float64, filePath string) (*Tracker, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("invalid recent-window size %d: must be at least 1", windowSize)
	}
	if emaAlpha <= 0 || emaAlpha >= 1 {
		return nil, fmt.Errorf("invalid EMA smoothing factor %.3f: must be in (0, 1)", emaAlpha)
	}
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "whalefuse", "whale-stats.json")
	}
	return &Tracker{
		whales:     make(map[string]*models.WhaleStats),
		applied:    make(map[string]struct{}),
		windowSize: windowSize,
		emaAlpha:   emaAlpha,
		filePath:   filePath,
	}, nil
}

// GetOrCreate returns a copy of the stats for a wallet, inserting a
// zero-initialized record on first sight.
func (t *Tracker) GetOrCreate(wallet string) *models.WhaleStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getOrCreateLocked(wallet).Clone()
}

func (t *Tracker) getOrCreateLocked(wallet string) *models.WhaleStats {
	s, ok := t.whales[wallet]
	if !ok {
		s = models.NewWhaleStats(wallet)
		t.whales[wallet] = s
	}
	return s
}

// Get returns a copy of a wallet's stats, or false if the wallet is unknown.
func (t *Tracker) Get(wallet string) (*models.WhaleStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.whales[wallet]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Snapshot returns copies of all tracked whale stats keyed by wallet.
func (t *Tracker) Snapshot() map[string]*models.WhaleStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*models.WhaleStats, len(t.whales))
	for wallet, s := range t.whales {
		out[wallet] = s.Clone()
	}
	return out
}

// RecordOutcome applies one resolved trade outcome to a wallet's record:
// total/win counters, the FIFO recent window, the category bucket, and the
// rolling weight EMA with the supplied performance signal.
//
// outcomeKey identifies the resolved (whale, trade) pair. Applying the same
// key twice returns ErrDuplicateOutcome and leaves the state untouched; the
// applied-key set persists with the snapshot so dedup survives restarts.
func (t *Tracker) RecordOutcome(wallet, outcomeKey string, category models.Category, won bool, performanceSignal float64) error {
	if wallet == "" {
		return errors.New("wallet must not be empty")
	}
	if outcomeKey == "" {
		return errors.New("outcome key must not be empty")
	}
	if !category.Valid() {
		return fmt.Errorf("invalid category %q", category)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.applied[outcomeKey]; dup {
		return ErrDuplicateOutcome
	}

	s := t.getOrCreateLocked(wallet)

	s.TotalTrades++
	if won {
		s.Wins++
	}

	s.RecentResults = append(s.RecentResults, won)
	if len(s.RecentResults) > t.windowSize {
		s.RecentResults = s.RecentResults[len(s.RecentResults)-t.windowSize:]
	}

	rec := s.Categories[category]
	rec.Trades++
	if won {
		rec.Wins++
	}
	s.Categories[category] = rec

	s.RollingWeight = t.emaAlpha*performanceSignal + (1-t.emaAlpha)*s.RollingWeight

	t.applied[outcomeKey] = struct{}{}
	return nil
}

// SetLeadScore writes the lead-lag analyzer's latest estimate for a wallet.
// This is a pass-through write; the score is clamped to [-1, 1].
func (t *Tracker) SetLeadScore(wallet string, score float64) {
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreateLocked(wallet).LeadScore = score
}

// Accuracy returns the win ratio for the requested scope: "all", "recent",
// or a category name. Scopes with zero trades return the neutral 0.5.
func (t *Tracker) Accuracy(wallet, scope string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.whales[wallet]
	if !ok {
		return 0.5
	}
	switch scope {
	case "all":
		return s.WinRate()
	case "recent":
		return s.RecentWinRate()
	default:
		return s.CategoryWinRate(models.Category(scope))
	}
}

// Persist writes an atomic snapshot of the full wallet → stats mapping. The
// snapshot is taken under the read lock, so it is never a torn mix of an
// in-flight update.
func (t *Tracker) Persist() error {
	t.mu.RLock()
	applied := make([]string, 0, len(t.applied))
	for key := range t.applied {
		applied = append(applied, key)
	}
	sort.Strings(applied)

	doc := persistenceFile{
		Version:         "1.0",
		SavedAt:         time.Now().UTC(),
		Whales:          t.whales,
		AppliedOutcomes: applied,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal whale stats: %w", err)
	}

	dir := filepath.Dir(t.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempPath := t.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write whale stats: %w", err)
	}
	if err := os.Rename(tempPath, t.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename whale stats file: %w", err)
	}
	return nil
}

// Load restores the tracker from its state file. A missing file starts
// fresh. A file that fails to parse or violates an invariant returns a
// *CorruptStateError and leaves the in-memory state untouched: persisted
// history is never silently dropped.
func (t *Tracker) Load() error {
	tempPath := t.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		// Stale leftover from an interrupted Persist; the real file is intact.
		_ = os.Remove(tempPath)
	}

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read whale stats file: %w", err)
	}

	var doc persistenceFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return &CorruptStateError{Path: t.filePath, Reason: err.Error()}
	}

	whales := doc.Whales
	if whales == nil {
		whales = make(map[string]*models.WhaleStats)
	}
	for wallet, s := range whales {
		if s == nil {
			return &CorruptStateError{Path: t.filePath, Reason: fmt.Sprintf("null record for wallet %s", wallet)}
		}
		if s.Categories == nil {
			s.Categories = make(map[models.Category]models.CategoryRecord)
		}
		if s.RecentResults == nil {
			s.RecentResults = []bool{}
		}
		if err := s.Validate(t.windowSize); err != nil {
			return &CorruptStateError{Path: t.filePath, Reason: fmt.Sprintf("wallet %s: %v", wallet, err)}
		}
	}

	applied := make(map[string]struct{}, len(doc.AppliedOutcomes))
	for _, key := range doc.AppliedOutcomes {
		applied[key] = struct{}{}
	}

	t.mu.Lock()
	t.whales = whales
	t.applied = applied
	t.mu.Unlock()
	return nil
}

// Reset discards all tracked state and removes the state file. This is the
// only sanctioned way past a corrupt snapshot.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	t.whales = make(map[string]*models.WhaleStats)
	t.applied = make(map[string]struct{})
	t.mu.Unlock()

	if err := os.Remove(t.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove whale stats file: %w", err)
	}
	return nil
}
