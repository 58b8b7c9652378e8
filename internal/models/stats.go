package models

import (
	"errors"
	"fmt"
)

// CategoryRecord holds the win/trade counters for one market category.
type CategoryRecord struct {
	Wins   int `json:"wins"`
	Trades int `json:"trades"`
}

// WhaleStats holds the persistent performance record for a single whale
// wallet. The tracker is the sole writer; every other component reads these
// by value and never mutates them.
//
// RecentResults is a FIFO window of the most recent resolved outcomes
// (true = win), bounded by the tracker's configured window size. Eviction is
// purely by insertion order.
type WhaleStats struct {
	Wallet        string                      `json:"wallet"`
	TotalTrades   int                         `json:"total_trades"`
	Wins          int                         `json:"wins"`
	RecentResults []bool                      `json:"recent_results"`
	Categories    map[Category]CategoryRecord `json:"categories"`
	LeadScore     float64                     `json:"lead_score"`
	RollingWeight float64                     `json:"rolling_weight"`
}

// NewWhaleStats returns a zero-initialized record for a first-seen wallet.
// RollingWeight starts at 1.0 so an unproven whale carries neutral influence.
func NewWhaleStats(wallet string) *WhaleStats {
	return &WhaleStats{
		Wallet:        wallet,
		RecentResults: []bool{},
		Categories:    make(map[Category]CategoryRecord),
		RollingWeight: 1.0,
	}
}

// WinRate returns the all-time win ratio, or 0.5 when no trades are recorded.
func (s *WhaleStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0.5
	}
	return float64(s.Wins) / float64(s.TotalTrades)
}

// RecentWinRate returns the win ratio over the recent-results window, or 0.5
// when the window is empty.
func (s *WhaleStats) RecentWinRate() float64 {
	if len(s.RecentResults) == 0 {
		return 0.5
	}
	wins := 0
	for _, won := range s.RecentResults {
		if won {
			wins++
		}
	}
	return float64(wins) / float64(len(s.RecentResults))
}

// CategoryWinRate returns the win ratio for one category, or 0.5 when the
// category has no recorded trades.
func (s *WhaleStats) CategoryWinRate(cat Category) float64 {
	rec, ok := s.Categories[cat]
	if !ok || rec.Trades == 0 {
		return 0.5
	}
	return float64(rec.Wins) / float64(rec.Trades)
}

// Validate checks the counting invariants. maxRecent bounds the recent-results
// window; pass the tracker's configured window size.
func (s *WhaleStats) Validate(maxRecent int) error {
	if s.Wallet == "" {
		return errors.New("whale wallet must not be empty")
	}
	if s.TotalTrades < 0 || s.Wins < 0 {
		return errors.New("trade counters must not be negative")
	}
	if s.Wins > s.TotalTrades {
		return fmt.Errorf("wins (%d) must not exceed total trades (%d)", s.Wins, s.TotalTrades)
	}
	if maxRecent > 0 && len(s.RecentResults) > maxRecent {
		return fmt.Errorf("recent window holds %d entries, limit is %d", len(s.RecentResults), maxRecent)
	}
	for cat, rec := range s.Categories {
		if rec.Wins < 0 || rec.Trades < 0 {
			return fmt.Errorf("category %q counters must not be negative", cat)
		}
		if rec.Wins > rec.Trades {
			return fmt.Errorf("category %q wins (%d) must not exceed trades (%d)", cat, rec.Wins, rec.Trades)
		}
	}
	if s.LeadScore < -1.0 || s.LeadScore > 1.0 {
		return errors.New("lead score must be between -1.0 and 1.0")
	}
	if s.RollingWeight < 0 {
		return errors.New("rolling weight must not be negative")
	}
	return nil
}

// Clone returns a deep copy, so readers can hold stats without aliasing the
// tracker's mutable state.
func (s *WhaleStats) Clone() *WhaleStats {
	c := *s
	c.RecentResults = append([]bool{}, s.RecentResults...)
	c.Categories = make(map[Category]CategoryRecord, len(s.Categories))
	for cat, rec := range s.Categories {
		c.Categories[cat] = rec
	}
	return &c
}
