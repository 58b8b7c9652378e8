package engine

import (
	"math"
	"testing"
	"time"

	"github.com/whalefuse/whalefuse/internal/models"
)

func newTestFusion(t *testing.T) *FusionEngine {
	t.Helper()
	decay, err := NewDecayWeighter(6 * time.Hour)
	if err != nil {
		t.Fatalf("NewDecayWeighter failed: %v", err)
	}
	return NewFusionEngine(decay, 24*time.Hour)
}

func bullishTrade(wallet string, age time.Duration, now time.Time) models.WhaleTrade {
	return models.WhaleTrade{
		Wallet:    wallet,
		MarketID:  "m1",
		Category:  models.CategoryCrypto,
		Outcome:   "YES",
		Side:      "BUY",
		SizeUSD:   20000,
		Price:     0.55,
		Timestamp: now.Add(-age),
	}
}

func bearishTrade(wallet string, age time.Duration, now time.Time) models.WhaleTrade {
	t := bullishTrade(wallet, age, now)
	t.Outcome = "NO"
	return t
}

func TestFuse_NoWhalesPosteriorEqualsForecast(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	forecast := models.ForecastResult{ProbabilityUp: 0.7, Variance: 0.01, SignalToNoise: 1.2}

	res := e.Fuse("m1", models.CategoryCrypto, nil, nil, forecast, now)
	if res.Prior != 0.5 {
		t.Errorf("Expected uninformative prior 0.5 with no whales, got %f", res.Prior)
	}
	if math.Abs(res.Posterior-0.7) > 1e-9 {
		t.Errorf("Expected posterior to collapse to forecast 0.7, got %f", res.Posterior)
	}
	if res.WhaleCount != 0 {
		t.Errorf("Expected zero whale count, got %d", res.WhaleCount)
	}
}

func TestFuse_EqualOpposingVotesCancel(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{
		bullishTrade("0xa", 2*time.Hour, now),
		bearishTrade("0xb", 2*time.Hour, now),
	}
	forecast := models.ForecastResult{ProbabilityUp: 0.65, Variance: 0.02, SignalToNoise: 0.8}

	res := e.Fuse("m1", models.CategoryCrypto, trades, nil, forecast, now)
	if math.Abs(res.Prior-0.5) > 1e-9 {
		t.Errorf("Expected symmetric votes to yield prior 0.5, got %f", res.Prior)
	}
	if math.Abs(res.Posterior-0.65) > 1e-9 {
		t.Errorf("Expected posterior to follow the forecast alone, got %f", res.Posterior)
	}
	if res.WhaleCount != 2 {
		t.Errorf("Expected both whales counted as voters, got %d", res.WhaleCount)
	}
}

func TestFuse_ProvenWhaleWithMomentumGoesUp(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{bullishTrade("0xa", 3*time.Hour, now)}
	stats := map[string]*models.WhaleStats{
		"0xa": {Wallet: "0xa", RollingWeight: 0.8, LeadScore: 0.2},
	}
	forecast := models.ForecastResult{ProbabilityUp: 0.55, Variance: 0.04, SignalToNoise: 0.6}

	res := e.Fuse("m1", models.CategoryCrypto, trades, stats, forecast, now)
	if res.Direction != models.DirectionUp {
		t.Errorf("Expected direction up, got %s", res.Direction)
	}
	if res.Posterior <= 0.5 {
		t.Errorf("Expected posterior above 0.5, got %f", res.Posterior)
	}
	if res.SizeMultiplier < 1.0 || res.SizeMultiplier > 2.0 {
		t.Errorf("Size multiplier out of [1, 2]: %f", res.SizeMultiplier)
	}
	if err := res.Validate(); err != nil {
		t.Errorf("Fusion result failed validation: %v", err)
	}
}

func TestFuse_SingleWhaleSizingFollowsContract(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	// One proven whale (rolling 0.8, lead 0.2) with a 3h-old bullish trade and
	// a mildly bullish forecast at unit signal-to-noise.
	trades := []models.WhaleTrade{bullishTrade("0xa", 3*time.Hour, now)}
	stats := map[string]*models.WhaleStats{
		"0xa": {Wallet: "0xa", RollingWeight: 0.8, LeadScore: 0.2},
	}
	forecast := models.ForecastResult{ProbabilityUp: 0.55, Variance: 0.04, SignalToNoise: 1.0}

	res := e.Fuse("m1", models.CategoryCrypto, trades, stats, forecast, now)
	if res.Direction != models.DirectionUp {
		t.Fatalf("Expected the fused posterior to favor up, got %s", res.Direction)
	}
	if res.Prior != 0.99 {
		t.Errorf("Expected the single unopposed vote clamped to prior 0.99, got %f", res.Prior)
	}
	if res.Posterior <= 0.55 {
		t.Errorf("Expected the whale vote to pull the posterior above the likelihood, got %f", res.Posterior)
	}
	// The emitted multiplier is exactly the sizing contract applied to the
	// derived confidence and the forecast SNR.
	if want := SizeMultiplier(res.Confidence, forecast.SignalToNoise); res.SizeMultiplier != want {
		t.Errorf("Expected multiplier %f from the sizing contract, got %f", want, res.SizeMultiplier)
	}
	// At the contract's reference point, confidence 0.3 with unit SNR sizes
	// the bet at exactly 1.15.
	if m := SizeMultiplier(0.3, 1.0); math.Abs(m-1.15) > 1e-12 {
		t.Errorf("Expected multiplier 1.15 at confidence 0.3, unit SNR, got %f", m)
	}
}

func TestFuse_UnopposedVoteBoundedByEpsilon(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{bullishTrade("0xa", time.Hour, now)}
	forecast := models.ForecastResult{ProbabilityUp: 0.5, Variance: 0.05, SignalToNoise: 0}

	res := e.Fuse("m1", models.CategoryCrypto, trades, nil, forecast, now)
	if res.Prior != 0.99 {
		t.Errorf("Expected unopposed prior clamped to 0.99, got %f", res.Prior)
	}
	if res.Posterior >= 1.0 {
		t.Errorf("Posterior must stay below 1.0, got %f", res.Posterior)
	}
}

func TestFuse_IndifferentPosteriorAbstains(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	// No votes and a perfectly uninformative forecast: posterior is exactly 0.5.
	forecast := models.ForecastResult{ProbabilityUp: 0.5, Variance: 0.25, SignalToNoise: 0, Degenerate: true}

	res := e.Fuse("m1", models.CategoryPolitics, nil, nil, forecast, now)
	if res.Direction != models.DirectionAbstain {
		t.Errorf("Expected abstain at posterior 0.5, got %s", res.Direction)
	}
	if res.SizeMultiplier != 1.0 {
		t.Errorf("Expected base multiplier 1.0 on abstain, got %f", res.SizeMultiplier)
	}
	if res.Confidence != 0 {
		t.Errorf("Expected zero confidence at indifference, got %f", res.Confidence)
	}
	if res.Actionable() {
		t.Error("Abstain result must not be actionable")
	}
}

func TestFuse_StaleTradesExcluded(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{
		bullishTrade("0xa", 30*time.Hour, now), // outside the 24h lookback
	}
	forecast := models.ForecastResult{ProbabilityUp: 0.5, Variance: 0.1, SignalToNoise: 0}

	res := e.Fuse("m1", models.CategoryCrypto, trades, nil, forecast, now)
	if res.Prior != 0.5 {
		t.Errorf("Expected stale trades to leave the prior uninformative, got %f", res.Prior)
	}
	if res.WhaleCount != 0 {
		t.Errorf("Expected stale trades excluded from voter count, got %d", res.WhaleCount)
	}
}

func TestFuse_ForeignMarketTradesIgnored(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	foreign := bullishTrade("0xa", time.Hour, now)
	foreign.MarketID = "m2"
	forecast := models.ForecastResult{ProbabilityUp: 0.5, Variance: 0.1, SignalToNoise: 0}

	res := e.Fuse("m1", models.CategoryCrypto, []models.WhaleTrade{foreign}, nil, forecast, now)
	if res.Prior != 0.5 || res.WhaleCount != 0 {
		t.Errorf("Expected trades for other markets ignored, got prior %f, count %d",
			res.Prior, res.WhaleCount)
	}
}

func TestFuse_DownwardDriftSizesDownBet(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{bearishTrade("0xa", 2*time.Hour, now)}
	forecast := models.ForecastResult{ProbabilityUp: 0.2, Variance: 0.02, SignalToNoise: -1.5}

	res := e.Fuse("m1", models.CategoryCrypto, trades, nil, forecast, now)
	if res.Direction != models.DirectionDown {
		t.Fatalf("Expected direction down, got %s", res.Direction)
	}
	// A negative SNR supports the downward call, so the size grows above base.
	if res.SizeMultiplier <= 1.0 {
		t.Errorf("Expected multiplier above 1.0 for an aligned downward drift, got %f", res.SizeMultiplier)
	}
}

func TestFuse_HigherVarianceLowersConfidence(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	trades := []models.WhaleTrade{bullishTrade("0xa", time.Hour, now)}

	calm := e.Fuse("m1", models.CategoryCrypto, trades, nil,
		models.ForecastResult{ProbabilityUp: 0.7, Variance: 0.01, SignalToNoise: 1}, now)
	noisy := e.Fuse("m1", models.CategoryCrypto, trades, nil,
		models.ForecastResult{ProbabilityUp: 0.7, Variance: 0.20, SignalToNoise: 1}, now)

	if noisy.Confidence >= calm.Confidence {
		t.Errorf("Expected forecast variance to dampen confidence: noisy %f >= calm %f",
			noisy.Confidence, calm.Confidence)
	}
}

func TestFuse_ResultsCarryUniqueIDs(t *testing.T) {
	e := newTestFusion(t)
	now := time.Now()
	forecast := models.ForecastResult{ProbabilityUp: 0.6, Variance: 0.05, SignalToNoise: 0.5}

	a := e.Fuse("m1", models.CategoryCrypto, nil, nil, forecast, now)
	b := e.Fuse("m1", models.CategoryCrypto, nil, nil, forecast, now)
	if a.ID == "" || b.ID == "" {
		t.Fatal("Expected non-empty result IDs")
	}
	if a.ID == b.ID {
		t.Error("Expected distinct IDs across fusion passes")
	}
}
