package report

import "math"

// TrendLine is an ordinary least squares fit of y on x.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	N         int     `json:"n"`
	R2        float64 `json:"r2"`

	residualSE float64
	meanX      float64
	sxx        float64
}

// FitTrend fits y = intercept + slope*x by least squares. It reports
// ok=false when fewer than three points are available or x carries no
// variance; the caller then draws no trend for that stratum.
func FitTrend(xs, ys []float64) (*TrendLine, bool) {
	n := len(xs)
	if n != len(ys) || n < 3 {
		return nil, false
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return nil, false
	}

	slope := sxy / sxx
	tl := &TrendLine{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		N:         n,
		meanX:     meanX,
		sxx:       sxx,
	}

	rss := syy - slope*sxy
	if rss < 0 {
		rss = 0
	}
	if syy > 0 {
		tl.R2 = 1 - rss/syy
	}
	tl.residualSE = math.Sqrt(rss / float64(n-2))

	return tl, true
}

// PredictAt evaluates the fitted line at x.
func (t *TrendLine) PredictAt(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// ConfidenceBand returns the half-width of the confidence interval for the
// mean response at x. The band widens away from the x mean.
func (t *TrendLine) ConfidenceBand(x, level float64) float64 {
	se := t.residualSE * math.Sqrt(1/float64(t.N)+(x-t.meanX)*(x-t.meanX)/t.sxx)
	return tCritical(level, t.N-2) * se
}

// Two-sided Student t critical values for degrees of freedom 1 through 30.
var (
	t950 = []float64{
		6.314, 2.920, 2.353, 2.132, 2.015, 1.943, 1.895, 1.860, 1.833, 1.812,
		1.796, 1.782, 1.771, 1.761, 1.753, 1.746, 1.740, 1.734, 1.729, 1.725,
		1.721, 1.717, 1.714, 1.711, 1.708, 1.706, 1.703, 1.701, 1.699, 1.697,
	}
	t975 = []float64{
		12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
		2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
		2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
	}
	t995 = []float64{
		63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169,
		3.106, 3.055, 3.012, 2.977, 2.947, 2.921, 2.898, 2.878, 2.861, 2.845,
		2.831, 2.819, 2.807, 2.797, 2.787, 2.779, 2.771, 2.763, 2.756, 2.750,
	}
)

// tCritical returns the two-sided Student t critical value for the given
// confidence level. The tables cover the small samples this dataset has;
// larger samples fall back to the normal approximation.
func tCritical(level float64, df int) float64 {
	if df < 1 {
		df = 1
	}

	var table []float64
	var z float64
	switch {
	case level >= 0.99:
		table, z = t995, 2.576
	case level >= 0.95:
		table, z = t975, 1.960
	default:
		table, z = t950, 1.645
	}

	if df <= len(table) {
		return table[df-1]
	}
	return z
}
