package curves

import "math"

// Metric names produced by Compare. Absent keys mean "uncomputable", which
// classification treats differently from a computed zero.
const (
	MetricNPoints           = "n_points_compared"
	MetricNormalizedRMSE    = "normalized_rmse"
	MetricCorrelation       = "correlation"
	MetricRSquared          = "r_squared"
	MetricPeakPositionError = "peak_position_error_pct"
	MetricPeakHeightRatio   = "peak_height_ratio"
	MetricFWHMRatio         = "fwhm_ratio"
)

// Comparison holds the quantitative comparison of a simulated curve against
// a reference. Pointer fields are nil when the metric is undefined; they are
// omitted from Metrics(), never zero-filled.
type Comparison struct {
	NPoints         int
	NormalizedRMSE  *float64 // RMSE / reference range, percent
	Correlation     *float64 // Pearson r
	RSquared        *float64 // coefficient of determination, may be negative
	PeakPositionErr *float64 // percent
	PeakHeightRatio *float64
	FWHMRatio       *float64

	SimPeak Peak
	RefPeak Peak
}

// Metrics flattens the comparison into named values for reports and
// classification. Undefined metrics are simply absent.
func (c Comparison) Metrics() map[string]float64 {
	m := map[string]float64{MetricNPoints: float64(c.NPoints)}
	put := func(name string, v *float64) {
		if v != nil {
			m[name] = *v
		}
	}
	put(MetricNormalizedRMSE, c.NormalizedRMSE)
	put(MetricCorrelation, c.Correlation)
	put(MetricRSquared, c.RSquared)
	put(MetricPeakPositionError, c.PeakPositionErr)
	put(MetricPeakHeightRatio, c.PeakHeightRatio)
	put(MetricFWHMRatio, c.FWHMRatio)
	return m
}

// Compare interpolates ref onto sim's x-axis (sim points outside ref's
// domain are excluded) and computes pointwise and peak-shape metrics.
func Compare(sim, ref Series) Comparison {
	var c Comparison

	// Pointwise metrics over the overlapping domain.
	var simY, refY []float64
	for i, x := range sim.X {
		v, ok := interpolate(ref, x)
		if !ok {
			continue
		}
		simY = append(simY, sim.Y[i])
		refY = append(refY, v)
	}
	c.NPoints = len(simY)

	if c.NPoints > 0 {
		c.NormalizedRMSE = ptr(normalizedRMSE(simY, refY))
	}
	if c.NPoints >= 2 {
		if r, ok := pearson(simY, refY); ok {
			c.Correlation = ptr(r)
		}
		if r2, ok := rSquared(simY, refY); ok {
			c.RSquared = ptr(r2)
		}
	}

	// Peak-shape metrics use the full series, not the interpolated overlap.
	c.SimPeak = PeakMetrics(sim.X, sim.Y)
	c.RefPeak = PeakMetrics(ref.X, ref.Y)

	if c.RefPeak.X != 0 {
		err := math.Abs(c.SimPeak.X-c.RefPeak.X) / math.Abs(c.RefPeak.X) * 100
		c.PeakPositionErr = ptr(err)
	}
	if c.RefPeak.Y != 0 {
		c.PeakHeightRatio = ptr(c.SimPeak.Y / c.RefPeak.Y)
	}
	if c.SimPeak.FWHM != nil && c.RefPeak.FWHM != nil && *c.RefPeak.FWHM != 0 {
		c.FWHMRatio = ptr(*c.SimPeak.FWHM / *c.RefPeak.FWHM)
	}
	return c
}

// interpolate linearly evaluates the series at x. Returns false outside the
// series' x-domain.
func interpolate(s Series, x float64) (float64, bool) {
	n := s.Len()
	if n == 0 || x < s.X[0] || x > s.X[n-1] {
		return 0, false
	}
	for i := 1; i < n; i++ {
		if x <= s.X[i] {
			x0, x1 := s.X[i-1], s.X[i]
			y0, y1 := s.Y[i-1], s.Y[i]
			if x1 == x0 {
				return y0, true
			}
			t := (x - x0) / (x1 - x0)
			return y0 + t*(y1-y0), true
		}
	}
	return s.Y[n-1], true
}

// normalizedRMSE is RMSE divided by the reference value range (or by 1 when
// the range is zero), expressed as a percentage.
func normalizedRMSE(sim, ref []float64) float64 {
	var sum float64
	for i := range sim {
		d := sim[i] - ref[i]
		sum += d * d
	}
	rmse := math.Sqrt(sum / float64(len(sim)))

	lo, hi := ref[0], ref[0]
	for _, v := range ref {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}
	return rmse / rng * 100
}

// pearson returns the Pearson correlation, or false when either series has
// zero variance.
func pearson(x, y []float64) (float64, bool) {
	mx, my := mean(x), mean(y)
	var num, dx2, dy2 float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	denom := math.Sqrt(dx2 * dy2)
	if denom == 0 {
		return 0, false
	}
	return num / denom, true
}

// rSquared is the coefficient of determination of sim against ref. It can
// be negative; it is undefined (false) when the reference has zero variance.
func rSquared(sim, ref []float64) (float64, bool) {
	mr := mean(ref)
	var ssRes, ssTot float64
	for i := range sim {
		d := ref[i] - sim[i]
		ssRes += d * d
		t := ref[i] - mr
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0, false
	}
	return 1 - ssRes/ssTot, true
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func ptr(v float64) *float64 { return &v }
