package models

import (
	"errors"
	"time"
)

// Direction is the traded direction chosen by the fusion engine.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	// DirectionAbstain is the defined no-trade condition: the posterior landed
	// exactly on 0.5, or the cycle could not produce a valid signal.
	DirectionAbstain Direction = "abstain"
)

// ForecastResult is the output of the trajectory forecaster for one market.
type ForecastResult struct {
	// ProbabilityUp is the probability that the price moves up over the
	// forecast horizon.
	ProbabilityUp float64 `json:"probability_up"`
	// Variance is the predictive variance of the drift estimate. Higher means
	// the forecast is less trustworthy.
	Variance float64 `json:"variance"`
	// SignalToNoise is drift mean divided by its standard deviation, 0 when
	// the variance is zero.
	SignalToNoise float64 `json:"signal_to_noise"`
	// Degenerate marks a fallback result produced from insufficient history.
	Degenerate bool `json:"degenerate"`
}

// Validate checks that all forecast fields are valid.
func (f *ForecastResult) Validate() error {
	if f.ProbabilityUp < 0.0 || f.ProbabilityUp > 1.0 {
		return errors.New("forecast probability must be between 0.0 and 1.0")
	}
	if f.Variance < 0 {
		return errors.New("forecast variance must not be negative")
	}
	return nil
}

// FusionResult is the output of one fusion pass for one market. It is handed
// to the order-execution side and journaled; the engine itself keeps no copy.
type FusionResult struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Category  Category  `json:"category"`
	Direction Direction `json:"direction"`

	Prior      float64 `json:"prior"`      // whale-consensus P(up)
	Likelihood float64 `json:"likelihood"` // momentum-forecast P(up)
	Posterior  float64 `json:"posterior"`  // fused P(up)

	Confidence     float64 `json:"confidence"`
	SizeMultiplier float64 `json:"size_multiplier"`

	WhaleCount  int       `json:"whale_count"` // whales voting inside the lookback window
	GeneratedAt time.Time `json:"generated_at"`
}

// Actionable reports whether the result carries a tradable direction.
func (r *FusionResult) Actionable() bool {
	return r.Direction == DirectionUp || r.Direction == DirectionDown
}

// Validate checks that all fusion result fields are valid.
func (r *FusionResult) Validate() error {
	if r.ID == "" {
		return errors.New("fusion result ID must not be empty")
	}
	if r.MarketID == "" {
		return errors.New("fusion result market ID must not be empty")
	}
	switch r.Direction {
	case DirectionUp, DirectionDown, DirectionAbstain:
	default:
		return errors.New("direction must be 'up', 'down' or 'abstain'")
	}
	for _, p := range []float64{r.Prior, r.Likelihood, r.Posterior} {
		if p < 0.0 || p > 1.0 {
			return errors.New("probabilities must be between 0.0 and 1.0")
		}
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	if r.SizeMultiplier < 1.0 || r.SizeMultiplier > 2.0 {
		return errors.New("size multiplier must be between 1.0 and 2.0")
	}
	if r.WhaleCount < 0 {
		return errors.New("whale count must not be negative")
	}
	if r.GeneratedAt.IsZero() {
		return errors.New("generated at must be set")
	}
	return nil
}
