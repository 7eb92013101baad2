package garch

import (
	"math"

	"garchflow/internal/model"
)

// Recurse computes the conditional-variance path h[1..T] and raw
// residuals eps[1..T] for the given family/params over return series r,
// using mu as the conditional mean. h[0] is initialized to the sample
// variance of r; the recursion proper starts at t=2 (index 1 in this
// 0-indexed slice).
//
// Returns h and eps both of length len(r); h[0] is the initializer and
// eps[0] = r[0]-mu drives h[1]. Fit's likelihood sums over index 1
// onward only, so the first observation contributes no term.
func Recurse(family model.VarianceFamily, vp VarianceParams, mu float64, r []float64) (h, eps []float64) {
	T := len(r)
	h = make([]float64, T)
	eps = make([]float64, T)

	eps[0] = r[0] - mu
	h[0] = sampleVariance(r, mu)
	if h[0] <= 0 {
		h[0] = 1e-8
	}

	switch family {
	case model.SGARCH:
		p := vp.(SGARCHParams)
		for t := 1; t < T; t++ {
			eps[t] = r[t] - mu
			h[t] = p.Omega + p.Alpha*eps[t-1]*eps[t-1] + p.Beta*h[t-1]
		}

	case model.GJRGARCH:
		p := vp.(GJRParams)
		for t := 1; t < T; t++ {
			eps[t] = r[t] - mu
			ind := 0.0
			if eps[t-1] < 0 {
				ind = 1.0
			}
			h[t] = p.Omega + p.Alpha*eps[t-1]*eps[t-1] + p.Gamma*ind*eps[t-1]*eps[t-1] + p.Beta*h[t-1]
		}

	case model.EGARCH:
		p := vp.(EGARCHParams)
		logH := math.Log(h[0])
		for t := 1; t < T; t++ {
			eps[t] = r[t] - mu
			zPrev := eps[t-1] / math.Sqrt(h[t-1])
			logH = p.Omega + p.Alpha*math.Abs(zPrev) + p.Gamma*zPrev + p.Beta*logH
			h[t] = math.Exp(logH)
		}

	case model.TGARCH:
		p := vp.(TGARCHParams)
		for t := 1; t < T; t++ {
			eps[t] = r[t] - mu
			ind := 0.0
			if eps[t-1] > p.Tau {
				ind = 1.0
			}
			h[t] = p.Omega + p.Alpha*eps[t-1]*eps[t-1] + p.Eta*ind*eps[t-1]*eps[t-1] + p.Beta*h[t-1]
		}
	}
	return h, eps
}

// StepVariance advances the recursion by one step given the previous
// state, used by both the simulator (internal/garch/simulate.go) and
// the Monte-Carlo forecaster (internal/garch/forecast.go).
func StepVariance(family model.VarianceFamily, vp VarianceParams, hPrev, epsPrev float64) float64 {
	switch family {
	case model.SGARCH:
		p := vp.(SGARCHParams)
		return p.Omega + p.Alpha*epsPrev*epsPrev + p.Beta*hPrev
	case model.GJRGARCH:
		p := vp.(GJRParams)
		ind := 0.0
		if epsPrev < 0 {
			ind = 1.0
		}
		return p.Omega + p.Alpha*epsPrev*epsPrev + p.Gamma*ind*epsPrev*epsPrev + p.Beta*hPrev
	case model.EGARCH:
		p := vp.(EGARCHParams)
		zPrev := epsPrev / math.Sqrt(hPrev)
		logH := p.Omega + p.Alpha*math.Abs(zPrev) + p.Gamma*zPrev + p.Beta*math.Log(hPrev)
		return math.Exp(logH)
	case model.TGARCH:
		p := vp.(TGARCHParams)
		ind := 0.0
		if epsPrev > p.Tau {
			ind = 1.0
		}
		return p.Omega + p.Alpha*epsPrev*epsPrev + p.Eta*ind*epsPrev*epsPrev + p.Beta*hPrev
	default:
		return hPrev
	}
}

// Stationary reports whether vp's persistence coefficients satisfy the
// family's stationarity inequality strictly, and the
// implied persistence (alpha-like + beta-like, + 1/2 asymmetry term).
func Stationary(family model.VarianceFamily, vp VarianceParams) (ok bool, persistence float64) {
	switch family {
	case model.SGARCH:
		p := vp.(SGARCHParams)
		persistence = p.Alpha + p.Beta
		return p.Alpha > 0 && p.Beta > 0 && persistence < 1, persistence
	case model.GJRGARCH:
		p := vp.(GJRParams)
		persistence = p.Alpha + p.Beta + 0.5*p.Gamma
		return p.Alpha > 0 && p.Beta > 0 && persistence < 1, persistence
	case model.EGARCH:
		p := vp.(EGARCHParams)
		return math.Abs(p.Beta) < 1, math.Abs(p.Beta)
	case model.TGARCH:
		p := vp.(TGARCHParams)
		persistence = p.Alpha + p.Beta + 0.5*p.Eta
		return p.Alpha > 0 && p.Beta > 0 && persistence < 1, persistence
	default:
		return false, 0
	}
}

func sampleVariance(r []float64, mu float64) float64 {
	if len(r) == 0 {
		return 0
	}
	var ss float64
	for _, v := range r {
		d := v - mu
		ss += d * d
	}
	return ss / float64(len(r))
}

func sampleMean(r []float64) float64 {
	if len(r) == 0 {
		return 0
	}
	var s float64
	for _, v := range r {
		s += v
	}
	return s / float64(len(r))
}
