// Package eval implements the evaluator: residual
// diagnostics, VaR backtests, distributional distances and stylized
// facts assembled into one EvalReport per (asset, spec, split) job.
package eval

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"garchflow/internal/model"
)

// acf returns the sample autocorrelation function of x at lags 1..maxLag.
func acf(x []float64, maxLag int) []float64 {
	n := len(x)
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	var c0 float64
	for _, v := range x {
		d := v - mean
		c0 += d * d
	}

	out := make([]float64, maxLag)
	for lag := 1; lag <= maxLag; lag++ {
		var ck float64
		for t := lag; t < n; t++ {
			ck += (x[t] - mean) * (x[t-lag] - mean)
		}
		if c0 > 0 {
			out[lag-1] = ck / c0
		}
	}
	return out
}

// LjungBox runs the Ljung-Box portmanteau test for residual
// autocorrelation up to lag m. Used on both the standardized
// residuals z and their squares z^2.
func LjungBox(x []float64, m int) model.TestResult {
	n := float64(len(x))
	rho := acf(x, m)
	var q float64
	for k := 1; k <= m; k++ {
		q += rho[k-1] * rho[k-1] / (n - float64(k))
	}
	q *= n * (n + 2)

	dist := distuv.ChiSquared{K: float64(m)}
	p := 1 - dist.CDF(q)
	return model.TestResult{Statistic: q, PValue: p}
}

// ArchLM runs Engle's ARCH-LM test for remaining conditional
// heteroskedasticity in squared standardized residuals, regressing
// z^2[t] on an intercept and its first m lags and testing n*R^2 against
// chi-square(m).
func ArchLM(z []float64, m int) model.TestResult {
	sq := make([]float64, len(z))
	for i, v := range z {
		sq[i] = v * v
	}
	n := len(sq) - m
	if n <= m+1 {
		return model.TestResult{Statistic: 0, PValue: 1}
	}

	y := make([]float64, n)
	design := make([][]float64, n) // [intercept, lag1..lagm]
	for i := 0; i < n; i++ {
		t := i + m
		y[i] = sq[t]
		row := make([]float64, m+1)
		row[0] = 1
		for l := 1; l <= m; l++ {
			row[l] = sq[t-l]
		}
		design[i] = row
	}

	r2 := olsR2(design, y)
	stat := float64(n) * r2
	dist := distuv.ChiSquared{K: float64(m)}
	p := 1 - dist.CDF(stat)
	return model.TestResult{Statistic: stat, PValue: p}
}

// olsR2 fits y ~ design by ordinary least squares (normal equations over
// a small m+1-column design matrix) and returns the regression's R^2,
// the only quantity ArchLM needs from the fit.
func olsR2(design [][]float64, y []float64) float64 {
	n := len(y)
	p := len(design[0])

	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	for t := 0; t < n; t++ {
		for i := 0; i < p; i++ {
			xty[i] += design[t][i] * y[t]
			for j := 0; j < p; j++ {
				xtx[i][j] += design[t][i] * design[t][j]
			}
		}
	}
	beta := solveLinear(xtx, xty)

	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(n)

	var ssTot, ssRes float64
	for t := 0; t < n; t++ {
		var pred float64
		for i := 0; i < p; i++ {
			pred += beta[i] * design[t][i]
		}
		ssRes += (y[t] - pred) * (y[t] - pred)
		ssTot += (y[t] - meanY) * (y[t] - meanY)
	}
	if ssTot <= 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// solveLinear solves A*x=b via Gaussian elimination with partial
// pivoting; A is small (m+1 columns) so this stays numerically fine
// without pulling in gonum/mat's full decomposition machinery.
func solveLinear(a [][]float64, b []float64) []float64 {
	n := len(b)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		if math.Abs(aug[col][col]) < 1e-12 {
			continue
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col] / aug[col][col]
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.Abs(aug[i][i]) < 1e-12 {
			x[i] = 0
			continue
		}
		x[i] = aug[i][n] / aug[i][i]
	}
	return x
}
