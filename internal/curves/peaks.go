package curves

// Peak describes the first-occurring maximum of a series.
type Peak struct {
	Index int
	X     float64 // peak position
	Y     float64 // peak value
	FWHM  *float64
}

// PeakMetrics finds the first-occurring maximum and its full width at half
// maximum. The FWHM scan walks outward from the peak index to the first
// sample at or below half the peak value on each side; if either side never
// crosses half-max (e.g. a flat or monotonic curve), FWHM stays nil.
func PeakMetrics(x, y []float64) Peak {
	p := Peak{Index: 0}
	if len(y) == 0 {
		return p
	}
	for i, v := range y {
		if v > y[p.Index] {
			p.Index = i
		}
	}
	p.X = x[p.Index]
	p.Y = y[p.Index]

	half := p.Y / 2

	left := -1
	for i := p.Index; i >= 0; i-- {
		if y[i] <= half {
			left = i
			break
		}
	}
	right := -1
	for i := p.Index; i < len(y); i++ {
		if y[i] <= half {
			right = i
			break
		}
	}
	if left >= 0 && right >= 0 {
		w := x[right] - x[left]
		p.FWHM = &w
	}
	return p
}
