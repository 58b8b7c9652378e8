package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/whalefuse/whalefuse/internal/models"
)

// priorEpsilon keeps the whale-consensus prior away from 0 and 1 so a single
// unopposed vote cannot force a degenerate posterior.
const priorEpsilon = 0.01

// FusionEngine combines the whale-consensus prior with the momentum-forecast
// likelihood into a posterior direction probability:
//
//	posterior ∝ P(momentum | direction) × P(direction | whales)
//
// normalized over the two direction outcomes. The prior aggregates, over all
// whales with a trade inside the decay lookback window, signed votes weighted
// by decay_weight × rolling_weight × (1 + clamp(lead_score, -0.5, 0.5)).
// With no whale votes the prior is uninformative (0.5) and the posterior
// collapses to the forecast probability exactly.
type FusionEngine struct {
	decay    *DecayWeighter
	lookback time.Duration
}

// NewFusionEngine builds a fusion engine using the given decay weighter and
// lookback window for whale-consensus aggregation.
func NewFusionEngine(decay *DecayWeighter, lookback time.Duration) *FusionEngine {
	return &FusionEngine{decay: decay, lookback: lookback}
}

// leadBonus is the monotonic, bounded boost applied to whales whose trades
// precede price moves: 1 + clamp(lead_score, -0.5, 0.5).
func leadBonus(leadScore float64) float64 {
	if leadScore > 0.5 {
		leadScore = 0.5
	} else if leadScore < -0.5 {
		leadScore = -0.5
	}
	return 1 + leadScore
}

// Fuse runs one fusion pass for a market. trades are the market's observed
// whale trades (any order, out-of-order timestamps tolerated), stats the
// tracker's current per-wallet records (missing wallets count with neutral
// weight), and forecast the trajectory forecaster's output for the market.
//
// A posterior of exactly 0.5 is the defined no-trade condition and yields
// DirectionAbstain with a multiplier of 1.0.
func (e *FusionEngine) Fuse(
	marketID string,
	category models.Category,
	trades []models.WhaleTrade,
	stats map[string]*models.WhaleStats,
	forecast models.ForecastResult,
	now time.Time,
) models.FusionResult {
	var upWeight, downWeight float64
	voters := make(map[string]struct{})

	for i := range trades {
		t := &trades[i]
		if t.MarketID != marketID {
			continue
		}
		age := now.Sub(t.Timestamp)
		if age > e.lookback {
			continue
		}

		rolling := 1.0
		lead := 0.0
		if s, ok := stats[t.Wallet]; ok && s != nil {
			rolling = s.RollingWeight
			lead = s.LeadScore
		}

		w := e.decay.Weight(t.Timestamp, now) * rolling * leadBonus(lead)
		if t.Direction() > 0 {
			upWeight += w
		} else {
			downWeight += w
		}
		voters[t.Wallet] = struct{}{}
	}

	prior := 0.5
	if total := upWeight + downWeight; total > 0 {
		prior = upWeight / total
		if prior < priorEpsilon {
			prior = priorEpsilon
		} else if prior > 1-priorEpsilon {
			prior = 1 - priorEpsilon
		}
	}

	likelihood := forecast.ProbabilityUp
	posterior := 0.5
	if denom := prior*likelihood + (1-prior)*(1-likelihood); denom > 0 {
		posterior = prior * likelihood / denom
	}

	// Distance from indifference, damped by forecast uncertainty: a noisy
	// forecast lowers confidence even when the posterior is extreme.
	confidence := 2 * (posterior - 0.5)
	if confidence < 0 {
		confidence = -confidence
	}
	confidence /= 1 + forecast.Variance
	if confidence > 1 {
		confidence = 1
	}

	direction := models.DirectionAbstain
	multiplier := 1.0
	switch {
	case posterior > 0.5:
		direction = models.DirectionUp
		multiplier = SizeMultiplier(confidence, forecast.SignalToNoise)
	case posterior < 0.5:
		direction = models.DirectionDown
		// Flip the SNR sign so a downward drift supports a downward bet.
		multiplier = SizeMultiplier(confidence, -forecast.SignalToNoise)
	}

	return models.FusionResult{
		ID:             uuid.New().String(),
		MarketID:       marketID,
		Category:       category,
		Direction:      direction,
		Prior:          prior,
		Likelihood:     likelihood,
		Posterior:      posterior,
		Confidence:     confidence,
		SizeMultiplier: multiplier,
		WhaleCount:     len(voters),
		GeneratedAt:    now,
	}
}
