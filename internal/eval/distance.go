package eval

import (
	"math"
	"sort"
)

// KolmogorovSmirnov computes the two-sample KS statistic and its
// asymptotic p-value directly over sorted order statistics. The pinned
// gonum/stat version in this dependency graph has no two-sample KS
// routine, so this falls back to the direct textbook implementation
// (documented in DESIGN.md) rather than leaving the metric unimplemented.
func KolmogorovSmirnov(a, b []float64) (stat, pvalue float64) {
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	i, j := 0, 0
	var d float64
	for i < len(sa) && j < len(sb) {
		// Step past every observation equal to the next value in either
		// sample so that tied values move both empirical CDFs together.
		v := math.Min(sa[i], sb[j])
		for i < len(sa) && sa[i] <= v {
			i++
		}
		for j < len(sb) && sb[j] <= v {
			j++
		}
		cdfA := float64(i) / float64(len(sa))
		cdfB := float64(j) / float64(len(sb))
		if diff := math.Abs(cdfA - cdfB); diff > d {
			d = diff
		}
	}

	n := float64(len(sa)*len(sb)) / float64(len(sa)+len(sb))
	lambda := (math.Sqrt(n) + 0.12 + 0.11/math.Sqrt(n)) * d
	pvalue = kolmogorovAsymptoticP(lambda)
	return d, pvalue
}

// kolmogorovAsymptoticP is the standard alternating-series asymptotic
// tail probability for the Kolmogorov distribution.
func kolmogorovAsymptoticP(lambda float64) float64 {
	if lambda < 0.2 {
		return 1
	}
	var sum float64
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k) * float64(k) * lambda * lambda)
		if k%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Wasserstein1 computes the 1-Wasserstein (earth-mover) distance between
// two empirical samples via the closed form over sorted order statistics,
// interpolating the smaller sample onto the larger one's quantile grid
// when sizes differ.
func Wasserstein1(a, b []float64) float64 {
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	n := len(sa)
	if len(sb) > n {
		n = len(sb)
	}
	if n == 0 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		q := (float64(i) + 0.5) / float64(n)
		total += math.Abs(quantileOf(sa, q) - quantileOf(sb, q))
	}
	return total / float64(n)
}

// quantileOf linearly interpolates the q-quantile of a pre-sorted slice.
func quantileOf(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
