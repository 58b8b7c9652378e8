package engine

// SizeMultiplier maps fusion confidence and forecast signal-to-noise ratio to
// a bet-size multiplier:
//
//	multiplier = 1.0 + min(1.0, confidence × snr / 2)
//
// clamped to [1.0, 2.0]. Zero confidence, or an SNR pointing against the
// chosen direction, yields the base size of 1.0.
func SizeMultiplier(confidence, snr float64) float64 {
	boost := confidence * snr / 2
	if boost > 1 {
		boost = 1
	}
	m := 1 + boost
	if m < 1 {
		return 1
	}
	if m > 2 {
		return 2
	}
	return m
}
