package anomaly

import (
	"math"
	"sort"
)

// Percentile returns the value at p in [0,1] over values, interpolating
// linearly between ranks. The input is copied before sorting.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Median returns the middle value, averaging the two central ranks for even
// counts.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// MAD returns the median absolute deviation scaled by 1.4826 so it estimates
// the standard deviation under a normal distribution.
func MAD(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	return 1.4826 * Median(deviations)
}

// Mean returns the arithmetic mean, ignoring NaN and Inf.
func Mean(values []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// StdDev returns the sample standard deviation around mean, ignoring NaN and
// Inf.
func StdDev(values []float64, mean float64) float64 {
	sumSquares := 0.0
	count := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		d := v - mean
		sumSquares += d * d
		count++
	}
	if count <= 1 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(count-1))
}

// Winsorize clamps values to the given lower and upper percentile bounds and
// returns a new slice.
func Winsorize(values []float64, lowerP, upperP float64) []float64 {
	if len(values) == 0 {
		return values
	}
	lowerBound := Percentile(values, lowerP)
	upperBound := Percentile(values, upperP)

	clamped := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lowerBound:
			clamped[i] = lowerBound
		case v > upperBound:
			clamped[i] = upperBound
		default:
			clamped[i] = v
		}
	}
	return clamped
}
