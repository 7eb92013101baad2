package eval

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"garchflow/internal/model"
)

// VaRBacktest runs the Kupiec unconditional-coverage, Christoffersen
// independence and Dynamic Quantile tests on a VaR violation series.
// hitSeries[t] is 1 if the realized return breached the VaR forecast
// at t, 0 otherwise; varLevels[t] is the VaR level (same units as the
// return series) that produced that hit, used by the Dynamic Quantile
// test's lagged-VaR regressor.
func VaRBacktest(alpha float64, hitSeries []int, varLevels []float64) model.VaRBacktestResult {
	n := len(hitSeries)
	violations := 0
	for _, h := range hitSeries {
		violations += h
	}
	rate := 0.0
	if n > 0 {
		rate = float64(violations) / float64(n)
	}

	return model.VaRBacktestResult{
		Alpha:           alpha,
		TotalObs:        n,
		Violations:      violations,
		ViolationRate:   rate,
		Kupiec:          kupiec(alpha, n, violations),
		Christoffersen:  christoffersen(hitSeries),
		DynamicQuantile: dynamicQuantile(hitSeries, varLevels, alpha),
	}
}

// kupiec is the unconditional-coverage likelihood-ratio test: observed
// violation rate pi_hat vs. the nominal alpha, asymptotically
// chi-square(1) under H0.
func kupiec(alpha float64, n, violations int) model.TestResult {
	if n == 0 {
		return model.TestResult{PValue: 1}
	}
	piHat := float64(violations) / float64(n)
	if piHat == 0 {
		piHat = 1e-10
	}
	if piHat == 1 {
		piHat = 1 - 1e-10
	}
	a := alpha
	if a <= 0 {
		a = 1e-10
	}
	if a >= 1 {
		a = 1 - 1e-10
	}

	logL0 := float64(n-violations)*math.Log(1-a) + float64(violations)*math.Log(a)
	logL1 := float64(n-violations)*math.Log(1-piHat) + float64(violations)*math.Log(piHat)
	lr := -2 * (logL0 - logL1)

	dist := distuv.ChiSquared{K: 1}
	return model.TestResult{Statistic: lr, PValue: 1 - dist.CDF(lr)}
}

// christoffersen tests independence of violations via a first-order
// Markov transition likelihood ratio (LR_ind), asymptotically
// chi-square(1) under H0; it is not combined with Kupiec's statistic.
func christoffersen(hits []int) model.TestResult {
	var n00, n01, n10, n11 int
	for t := 1; t < len(hits); t++ {
		switch {
		case hits[t-1] == 0 && hits[t] == 0:
			n00++
		case hits[t-1] == 0 && hits[t] == 1:
			n01++
		case hits[t-1] == 1 && hits[t] == 0:
			n10++
		case hits[t-1] == 1 && hits[t] == 1:
			n11++
		}
	}

	pi01 := safeRatio(n01, n00+n01)
	pi11 := safeRatio(n11, n10+n11)
	pi := safeRatio(n01+n11, n00+n01+n10+n11)

	logLInd := logBernTerm(n00, 1-pi01) + logBernTerm(n01, pi01) + logBernTerm(n10, 1-pi11) + logBernTerm(n11, pi11)
	logLNull := logBernTerm(n00, 1-pi) + logBernTerm(n01, pi) + logBernTerm(n10, 1-pi) + logBernTerm(n11, pi)

	lr := -2 * (logLNull - logLInd)
	dist := distuv.ChiSquared{K: 1}
	return model.TestResult{Statistic: lr, PValue: 1 - dist.CDF(lr)}
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func logBernTerm(count int, p float64) float64 {
	if count == 0 {
		return 0
	}
	if p <= 0 {
		p = 1e-10
	}
	if p >= 1 {
		p = 1 - 1e-10
	}
	return float64(count) * math.Log(p)
}

// dynamicQuantile regresses the demeaned hit indicator on an intercept,
// its first 4 lags, and the lagged VaR level (the Dynamic Quantile test
// of Engle & Manganelli, with the lagged-VaR regressor the test adds to
// check whether violations respond to the level of risk rather than
// just its own history); under H0 the joint significance statistic is
// chi-square(p) with p the total regressor count.
func dynamicQuantile(hits []int, varLevels []float64, alpha float64) model.TestResult {
	const lags = 4
	n := len(hits) - lags
	if n <= lags+3 || len(varLevels) != len(hits) {
		return model.TestResult{PValue: 1}
	}

	const regressors = lags + 2 // intercept + lags hit-lags + 1 VaR lag
	y := make([]float64, n)
	design := make([][]float64, n)
	for i := 0; i < n; i++ {
		t := i + lags
		y[i] = float64(hits[t]) - alpha
		row := make([]float64, regressors)
		row[0] = 1
		for l := 1; l <= lags; l++ {
			row[l] = float64(hits[t-l]) - alpha
		}
		row[lags+1] = varLevels[t-1]
		design[i] = row
	}

	r2 := olsR2(design, y)
	stat := float64(n) * r2
	dist := distuv.ChiSquared{K: float64(regressors)}
	return model.TestResult{Statistic: stat, PValue: 1 - dist.CDF(stat)}
}
