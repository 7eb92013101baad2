package eval

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"garchflow/internal/model"
)

// StylizedFacts computes the moment, autocorrelation and tail-index
// diagnostics for a return series r.
func StylizedFacts(r []float64, acfLags int) model.StylizedFacts {
	mean := stat.Mean(r, nil)
	variance := stat.Variance(r, nil)
	sd := math.Sqrt(variance)

	skew := stat.Skew(r, nil)
	exKurt := stat.ExKurtosis(r, nil)

	absR := make([]float64, len(r))
	sqR := make([]float64, len(r))
	for i, v := range r {
		absR[i] = math.Abs(v)
		sqR[i] = v * v
	}

	return model.StylizedFacts{
		Mean:           mean,
		Variance:       variance,
		Skewness:       skew,
		ExcessKurtosis: exKurt,
		ACFReturns:     acf(r, acfLags),
		ACFAbs:         acf(absR, acfLags),
		ACFSquared:     acf(sqR, acfLags),
		TailIndex:      hillTailIndex(r, sd),
	}
}

// hillTailIndex estimates the tail index via the Hill (1975) estimator
// on the k = ceil(T^0.3) largest absolute observations, each divided by
// scale (the sample standard deviation) but not de-meaned.
func hillTailIndex(r []float64, scale float64) float64 {
	if scale <= 0 {
		return math.NaN()
	}
	abs := make([]float64, len(r))
	for i, v := range r {
		abs[i] = math.Abs(v) / scale
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(abs)))

	k := int(math.Ceil(math.Pow(float64(len(abs)), 0.3)))
	if k < 2 {
		k = 2
	}
	if k >= len(abs) {
		k = len(abs) - 1
	}
	if k < 2 {
		return math.NaN()
	}

	threshold := abs[k]
	if threshold <= 0 {
		return math.NaN()
	}
	var sumLog float64
	for i := 0; i < k; i++ {
		if abs[i] <= 0 {
			continue
		}
		sumLog += math.Log(abs[i] / threshold)
	}
	if sumLog <= 0 {
		return math.NaN()
	}
	return float64(k) / sumLog
}
