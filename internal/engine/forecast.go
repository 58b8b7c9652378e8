package engine

import (
	"math"
	"time"

	"github.com/whalefuse/whalefuse/internal/models"
)

// maxForecastVariance is the uncertainty reported for degenerate inputs,
// matching the variance of a maximally uncertain direction call.
const maxForecastVariance = 0.25

// degenerateProbShift is how far a degenerate forecast leans toward the sign
// of the most recent return.
const degenerateProbShift = 0.1

// TrajectoryForecaster produces a probabilistic near-term price trajectory
// from a market's momentum history.
//
// The price path is modeled as a drift-diffusion process. Per-interval
// returns are weighted by a recency kernel exp(-age/lengthScale), giving a
// posterior drift mean and variance conditioned on the observed samples; the
// predictive variance widens with sparse or noisy history through the
// effective sample size. The probability of an upward move is the normal CDF
// of the standardized drift.
type TrajectoryForecaster struct {
	lengthScale time.Duration
}

// NewTrajectoryForecaster builds a forecaster with the given recency kernel
// length scale. Non-positive values fall back to the default of 2 hours.
func NewTrajectoryForecaster(lengthScale time.Duration) *TrajectoryForecaster {
	if lengthScale <= 0 {
		lengthScale = 2 * time.Hour
	}
	return &TrajectoryForecaster{lengthScale: lengthScale}
}

// Forecast computes the direction probability, predictive variance, and
// signal-to-noise ratio from a chronologically ordered sample sequence.
// Fewer than two samples, or a zero-variance series, yields a degenerate
// fallback: the immediate sign of the latest return with maximal uncertainty.
func (f *TrajectoryForecaster) Forecast(samples []models.MomentumSample) models.ForecastResult {
	if len(samples) < 2 {
		var last float64
		if len(samples) == 1 {
			last = samples[0].Return
		}
		return degenerateForecast(last)
	}

	// The first sample's return references a price outside the window.
	returns := make([]float64, 0, len(samples)-1)
	ages := make([]float64, 0, len(samples)-1)
	latest := samples[len(samples)-1].Timestamp
	for _, s := range samples[1:] {
		returns = append(returns, s.Return)
		ages = append(ages, latest.Sub(s.Timestamp).Hours())
	}

	scale := f.lengthScale.Hours()
	var sumW, sumWR, sumWW float64
	weights := make([]float64, len(returns))
	for i, age := range ages {
		if age < 0 {
			age = 0
		}
		w := math.Exp(-age / scale)
		weights[i] = w
		sumW += w
		sumWR += w * returns[i]
		sumWW += w * w
	}
	if sumW <= 0 {
		return degenerateForecast(returns[len(returns)-1])
	}

	mean := sumWR / sumW
	var variance float64
	for i, r := range returns {
		d := r - mean
		variance += weights[i] * d * d
	}
	variance /= sumW

	if variance < 1e-18 {
		return degenerateForecast(mean)
	}

	// Effective sample size of the weighted history; predictive variance
	// combines process noise with drift-estimation uncertainty.
	nEff := sumW * sumW / sumWW
	predVariance := variance * (1 + 1/nEff)
	sd := math.Sqrt(predVariance)

	z := mean / sd
	return models.ForecastResult{
		ProbabilityUp: normalCDF(z),
		Variance:      predVariance,
		SignalToNoise: z,
	}
}

func degenerateForecast(lastReturn float64) models.ForecastResult {
	prob := 0.5
	if lastReturn > 0 {
		prob += degenerateProbShift
	} else if lastReturn < 0 {
		prob -= degenerateProbShift
	}
	return models.ForecastResult{
		ProbabilityUp: prob,
		Variance:      maxForecastVariance,
		SignalToNoise: 0,
		Degenerate:    true,
	}
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
