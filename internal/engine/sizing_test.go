package engine

import (
	"math"
	"testing"
)

func TestSizeMultiplier_ZeroConfidenceIsBase(t *testing.T) {
	for _, snr := range []float64{-3, 0, 0.5, 3} {
		if m := SizeMultiplier(0, snr); m != 1.0 {
			t.Errorf("Expected base multiplier 1.0 at zero confidence (snr %f), got %f", snr, m)
		}
	}
}

func TestSizeMultiplier_OpposingSNRIsBase(t *testing.T) {
	if m := SizeMultiplier(0.8, -2.0); m != 1.0 {
		t.Errorf("Expected base multiplier 1.0 for an opposing SNR, got %f", m)
	}
}

func TestSizeMultiplier_ModerateSignal(t *testing.T) {
	m := SizeMultiplier(0.3, 1.0)
	if math.Abs(m-1.15) > 1e-12 {
		t.Errorf("Expected multiplier 1.15 for confidence 0.3, snr 1.0, got %f", m)
	}
}

func TestSizeMultiplier_BoostCapsAtDouble(t *testing.T) {
	if m := SizeMultiplier(1.0, 10.0); m != 2.0 {
		t.Errorf("Expected multiplier capped at 2.0, got %f", m)
	}
	if m := SizeMultiplier(1.0, 2.0); m != 2.0 {
		t.Errorf("Expected multiplier 2.0 at the boost ceiling, got %f", m)
	}
}

func TestSizeMultiplier_AlwaysWithinBounds(t *testing.T) {
	confs := []float64{0, 0.1, 0.3, 0.5, 0.9, 1.0}
	snrs := []float64{-5, -1, -0.2, 0, 0.2, 1, 5}
	for _, c := range confs {
		for _, s := range snrs {
			m := SizeMultiplier(c, s)
			if m < 1.0 || m > 2.0 {
				t.Errorf("Multiplier out of [1, 2] for confidence %f, snr %f: %f", c, s, m)
			}
		}
	}
}

func TestSizeMultiplier_MonotonicInConfidence(t *testing.T) {
	prev := 0.0
	for _, c := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		m := SizeMultiplier(c, 1.5)
		if m < prev {
			t.Errorf("Multiplier not monotonic at confidence %f: %f < %f", c, m, prev)
		}
		prev = m
	}
}
