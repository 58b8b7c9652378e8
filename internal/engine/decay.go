// Package engine implements the signal fusion core: time-decay weighting of
// whale trades, lead-lag scoring, probabilistic trajectory forecasting,
// Bayesian fusion of whale consensus with momentum evidence, and bounded
// position sizing.
//
// Every function in this package is deterministic for identical inputs.
// Insufficient history is never an error: components degrade to neutral
// values (lead score 0, maximal forecast uncertainty) and let the fusion
// confidence reflect the missing evidence.
package engine

import (
	"fmt"
	"math"
	"time"
)

// DecayWeighter converts a trade's age into an influence weight in (0, 1]
// using exponential decay: weight = exp(-ln2/halfLife × hours).
type DecayWeighter struct {
	lambda float64
}

// NewDecayWeighter builds a weighter with the given half-life. A trade at
// exactly one half-life of age receives weight 0.5.
func NewDecayWeighter(halfLife time.Duration) (*DecayWeighter, error) {
	if halfLife <= 0 {
		return nil, fmt.Errorf("invalid decay half-life %v: must be positive", halfLife)
	}
	return &DecayWeighter{lambda: math.Ln2 / halfLife.Hours()}, nil
}

// Weight returns the decay weight of a trade observed at tradeTime, evaluated
// at now. Weight is 1 at age zero and decreases monotonically with age,
// approaching but never reaching 0. Negative ages (clock skew) are clamped to
// zero so the weight never exceeds 1.
func (d *DecayWeighter) Weight(tradeTime, now time.Time) float64 {
	hours := now.Sub(tradeTime).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-d.lambda * hours)
}
