// Package models defines the core domain entities for whalefuse: observed
// whale trades, momentum samples, per-whale performance statistics, and the
// fused trading signal. All models include built-in validation to ensure data
// integrity throughout the application.
//
// Terminology:
//   - Whale: a tracked market participant whose historical trade outcomes are
//     recorded for predictive weighting.
//   - Market: a single yes/no prediction market, identified by the upstream
//     market ID.
package models

import (
	"errors"
	"strings"
	"time"
)

// Category classifies a market for category-specific accuracy tracking.
type Category string

const (
	CategoryCrypto   Category = "crypto"
	CategoryPolitics Category = "politics"
	CategorySports   Category = "sports"
	CategoryOther    Category = "other"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryCrypto, CategoryPolitics, CategorySports, CategoryOther:
		return true
	}
	return false
}

// DetectCategory derives a market category from its question text.
// Unrecognized questions fall into CategoryOther.
func DetectCategory(question string) Category {
	q := strings.ToLower(question)

	for _, kw := range []string{"btc", "eth", "sol", "xrp", "bitcoin", "ethereum", "solana"} {
		if strings.Contains(q, kw) {
			return CategoryCrypto
		}
	}
	for _, kw := range []string{"election", "president", "congress", "senate", "parliament"} {
		if strings.Contains(q, kw) {
			return CategoryPolitics
		}
	}
	for _, kw := range []string{"nfl", "nba", "mlb", "ufc", "game", "match", "score", "championship"} {
		if strings.Contains(q, kw) {
			return CategorySports
		}
	}
	return CategoryOther
}

// WhaleTrade is a single observed trade by a tracked whale wallet.
// Trades are immutable once recorded: the ingestion side creates them and the
// engine only ever reads them.
type WhaleTrade struct {
	Wallet         string    `json:"wallet"`
	MarketID       string    `json:"market_id"`
	MarketQuestion string    `json:"market_question"`
	Category       Category  `json:"category"`
	Outcome        string    `json:"outcome"` // "YES"/"NO" or "UP"/"DOWN"
	Side           string    `json:"side"`    // "BUY" or "SELL"
	SizeUSD        float64   `json:"size_usd"`
	Price          float64   `json:"price"`
	Timestamp      time.Time `json:"timestamp"`
}

// Direction returns the signed directional reading of the trade:
// +1 bullish (toward YES/UP resolving), -1 bearish.
// BUY YES and SELL NO are bullish; BUY NO and SELL YES are bearish.
func (t *WhaleTrade) Direction() float64 {
	base := 1.0
	if t.Side == "SELL" {
		base = -1.0
	}
	switch strings.ToUpper(t.Outcome) {
	case "NO", "DOWN":
		base *= -1
	}
	return base
}

// Validate checks that all trade fields are valid.
func (t *WhaleTrade) Validate() error {
	if t.Wallet == "" {
		return errors.New("trade wallet must not be empty")
	}
	if t.MarketID == "" {
		return errors.New("trade market ID must not be empty")
	}
	if !t.Category.Valid() {
		return errors.New("trade category must be one of: crypto, politics, sports, other")
	}
	if t.Side != "BUY" && t.Side != "SELL" {
		return errors.New("trade side must be 'BUY' or 'SELL'")
	}
	if t.SizeUSD < 0 {
		return errors.New("trade size must not be negative")
	}
	if t.Price < 0.0 || t.Price > 1.0 {
		return errors.New("trade price must be between 0.0 and 1.0")
	}
	if t.Timestamp.IsZero() {
		return errors.New("trade timestamp must be set")
	}
	return nil
}

// MomentumSample is a single price observation for a market, with the
// short-horizon return derived from the previous observation. Samples are
// ephemeral: they are supplied per decision cycle and never stored.
type MomentumSample struct {
	MarketID  string    `json:"market_id"`
	Price     float64   `json:"price"`
	Return    float64   `json:"return"` // fractional return since the previous sample
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that all sample fields are valid.
func (s *MomentumSample) Validate() error {
	if s.MarketID == "" {
		return errors.New("sample market ID must not be empty")
	}
	if s.Price <= 0 {
		return errors.New("sample price must be positive")
	}
	if s.Timestamp.IsZero() {
		return errors.New("sample timestamp must be set")
	}
	return nil
}
