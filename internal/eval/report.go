package eval

import (
	"math"

	"garchflow/internal/model"
)

// ReportInputs bundles everything the evaluator needs for one
// (asset, spec, split) job.
type ReportInputs struct {
	Fit *model.GarchFit

	// TestReturns/TestH are the held-out split's realized returns and
	// the corresponding one-step-ahead variance forecasts evaluated
	// against them.
	TestReturns []float64
	TestH       []float64

	// VaRHitSeries maps each backtested tail-probability alpha to its
	// 0/1 hit series over the test split; VaRLevelSeries maps the same
	// alpha to the realized VaR level at each t, used by the Dynamic
	// Quantile test's lagged-VaR regressor.
	VaRHitSeries   map[float64][]int
	VaRLevelSeries map[float64][]float64

	// SimulatedReturns is a pooled sample of NF-GARCH-simulated returns
	// used for the KS/Wasserstein distributional comparison against
	// TestReturns.
	SimulatedReturns []float64

	ACFLags int
}

// BuildReport assembles an EvalReport for one job.
func BuildReport(assetID string, spec model.ModelSpec, splitID string, in ReportInputs) model.EvalReport {
	mse, mae := forecastErrors(in.TestReturns, in.Fit.Mu, in.TestH)

	lbZ := LjungBox(in.Fit.Z, 10)
	lbZ2 := ljungBoxSquared(in.Fit.Z, 10)
	archLM := ArchLM(in.Fit.Z, 10)

	var varResults []model.VaRBacktestResult
	for alpha, hits := range in.VaRHitSeries {
		varResults = append(varResults, VaRBacktest(alpha, hits, in.VaRLevelSeries[alpha]))
	}

	ksStat, ksP := KolmogorovSmirnov(in.SimulatedReturns, in.TestReturns)
	w1 := Wasserstein1(in.SimulatedReturns, in.TestReturns)

	lags := in.ACFLags
	if lags <= 0 {
		lags = 10
	}
	stylized := StylizedFacts(in.TestReturns, lags)

	return model.EvalReport{
		AssetID: assetID,
		Spec:    spec,
		SplitID: splitID,

		AIC:    in.Fit.AIC,
		BIC:    in.Fit.BIC,
		LogLik: in.Fit.LogLik,
		MSE:    mse,
		MAE:    mae,

		LjungBoxZ:  lbZ,
		LjungBoxZ2: lbZ2,
		ArchLM:     archLM,

		VaR: varResults,

		KSStat:      ksStat,
		KSPValue:    ksP,
		Wasserstein: w1,

		Stylized: stylized,
	}
}

func ljungBoxSquared(z []float64, m int) model.TestResult {
	sq := make([]float64, len(z))
	for i, v := range z {
		sq[i] = v * v
	}
	return LjungBox(sq, m)
}

// forecastErrors compares realized returns against the fit's conditional
// mean and forecasted variance path: MSE/MAE are computed on squared
// returns vs. forecasted variance, the standard GARCH forecast-accuracy
// convention (since variance itself is unobserved, squared demeaned
// return is its usual unbiased proxy).
func forecastErrors(r []float64, mu float64, h []float64) (mse, mae float64) {
	n := len(r)
	if n == 0 || len(h) < n {
		return math.NaN(), math.NaN()
	}
	for t := 0; t < n; t++ {
		proxy := (r[t] - mu) * (r[t] - mu)
		diff := proxy - h[t]
		mse += diff * diff
		mae += math.Abs(diff)
	}
	mse /= float64(n)
	mae /= float64(n)
	return mse, mae
}
