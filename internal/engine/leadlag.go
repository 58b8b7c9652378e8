package engine

import (
	"math"

	"github.com/whalefuse/whalefuse/internal/models"
)

// LeadLagAnalyzer estimates, per whale and market, whether the whale's trades
// statistically precede price moves.
//
// The estimate is a Granger-style regression comparison: future returns are
// regressed on past returns alone (restricted model) and on past returns plus
// the whale's lagged trade direction (augmented model). The lead score is the
// relative reduction in squared residuals from adding the whale's history,
// signed by the whale coefficient, bounded in [-1, 1]. A positive score means
// the whale's trades predict same-direction moves in the next period.
type LeadLagAnalyzer struct {
	minSamples int
}

// NewLeadLagAnalyzer builds an analyzer requiring at least minSamples paired
// observations before producing a non-neutral score. Values below 2 are
// raised to the default of 5.
func NewLeadLagAnalyzer(minSamples int) *LeadLagAnalyzer {
	if minSamples < 2 {
		minSamples = 5
	}
	return &LeadLagAnalyzer{minSamples: minSamples}
}

// LeadScore computes the lead score of one whale on one market from the
// whale's trades and the market's momentum samples (oldest first). Returns a
// neutral 0 when the history is too short or the regression is degenerate.
func (a *LeadLagAnalyzer) LeadScore(trades []models.WhaleTrade, samples []models.MomentumSample) float64 {
	if len(samples) < 3 {
		return 0
	}

	// Pair each interval's whale activity with the next interval's return:
	// y[t] = return(t+1), x[t] = return(t), w[t] = signed whale direction sum
	// over the interval ending at sample t.
	n := len(samples) - 1
	y := make([]float64, 0, n)
	x := make([]float64, 0, n)
	w := make([]float64, 0, n)

	for t := 0; t < n; t++ {
		var signal float64
		binEnd := samples[t].Timestamp
		for i := range trades {
			ts := trades[i].Timestamp
			if ts.After(binEnd) {
				continue
			}
			if t > 0 && !ts.After(samples[t-1].Timestamp) {
				continue
			}
			signal += trades[i].Direction()
		}
		y = append(y, samples[t+1].Return)
		x = append(x, samples[t].Return)
		w = append(w, signal)
	}

	if len(y) < a.minSamples {
		return 0
	}

	ssrRestricted, ok := residualSS2(y, x)
	if !ok || ssrRestricted < 1e-12 {
		// Past returns already explain the future perfectly (or the series is
		// flat); the whale cannot add predictive power.
		return 0
	}

	ssrAugmented, whaleCoeff, ok := residualSS3(y, x, w)
	if !ok {
		return 0
	}

	improvement := (ssrRestricted - ssrAugmented) / ssrRestricted
	if improvement < 0 {
		improvement = 0
	} else if improvement > 1 {
		improvement = 1
	}
	if whaleCoeff < 0 {
		return -improvement
	}
	return improvement
}

// residualSS2 fits y = a + b·x by least squares and returns the residual sum
// of squares. ok is false when x has no variance.
func residualSS2(y, x []float64) (float64, bool) {
	n := float64(len(y))
	var sx, sy, sxx, sxy float64
	for i := range y {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	det := n*sxx - sx*sx
	if math.Abs(det) < 1e-12 {
		return 0, false
	}
	b := (n*sxy - sx*sy) / det
	a := (sy - b*sx) / n

	var ssr float64
	for i := range y {
		r := y[i] - a - b*x[i]
		ssr += r * r
	}
	return ssr, true
}

// residualSS3 fits y = a + b·x + c·w by least squares, returning the residual
// sum of squares and the whale coefficient c. ok is false when the normal
// equations are singular (e.g. the whale never traded in the window).
func residualSS3(y, x, w []float64) (ssr, c float64, ok bool) {
	n := float64(len(y))
	var sx, sw, sy, sxx, sww, sxw, sxy, swy float64
	for i := range y {
		sx += x[i]
		sw += w[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sww += w[i] * w[i]
		sxw += x[i] * w[i]
		sxy += x[i] * y[i]
		swy += w[i] * y[i]
	}

	m := [3][4]float64{
		{n, sx, sw, sy},
		{sx, sxx, sxw, sxy},
		{sw, sxw, sww, swy},
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return 0, 0, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := 0; row < 3; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	a := m[0][3] / m[0][0]
	b := m[1][3] / m[1][1]
	c = m[2][3] / m[2][2]

	for i := range y {
		r := y[i] - a - b*x[i] - c*w[i]
		ssr += r * r
	}
	return ssr, c, true
}
