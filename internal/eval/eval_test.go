package eval

import (
	"math"
	"math/rand"
	"testing"

	"garchflow/internal/model"
)

func TestLjungBox_WhiteNoise_HighPValue(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	z := make([]float64, 500)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	res := LjungBox(z, 10)
	if res.PValue < 0.01 {
		t.Errorf("Ljung-Box on white noise gave suspiciously low p-value: %v (stat=%v)", res.PValue, res.Statistic)
	}
}

func TestKolmogorovSmirnov_IdenticalSamples_StatNearZero(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := make([]float64, 300)
	for i := range a {
		a[i] = rng.NormFloat64()
	}
	b := append([]float64(nil), a...)
	stat, p := KolmogorovSmirnov(a, b)
	if stat > 1e-9 {
		t.Errorf("KS stat on identical samples = %v, want ~0", stat)
	}
	if p < 0.99 {
		t.Errorf("KS p-value on identical samples = %v, want ~1", p)
	}
}

func TestWasserstein1_ShiftedSamples_EqualsShift(t *testing.T) {
	a := []float64{0, 1, 2, 3, 4}
	shift := 5.0
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = v + shift
	}
	got := Wasserstein1(a, b)
	if math.Abs(got-shift) > 1e-9 {
		t.Errorf("Wasserstein1(shifted by %v) = %v, want %v", shift, got, shift)
	}
}

func TestVaRBacktest_NoViolations_KupiecRejectsOverconservatism(t *testing.T) {
	hits := make([]int, 250)       // zero violations at alpha=0.05 over 250 obs is itself unusual
	levels := make([]float64, 250) // flat VaR level series; irrelevant to this assertion
	res := VaRBacktest(0.05, hits, levels)
	if res.Violations != 0 {
		t.Fatalf("Violations = %d, want 0", res.Violations)
	}
	if res.Kupiec.PValue > 0.5 {
		t.Errorf("Kupiec p-value = %v, expected a low p-value flagging the mismatch between 0 observed and 0.05 nominal violations", res.Kupiec.PValue)
	}
}

func TestStylizedFacts_NormalSample_LowExcessKurtosis(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	r := make([]float64, 2000)
	for i := range r {
		r[i] = rng.NormFloat64()
	}
	sf := StylizedFacts(r, 5)
	if math.Abs(sf.ExcessKurtosis) > 1.0 {
		t.Errorf("excess kurtosis of Gaussian sample = %v, want close to 0", sf.ExcessKurtosis)
	}
	if math.IsNaN(sf.TailIndex) {
		t.Errorf("TailIndex is NaN")
	}
}

func TestBuildReport_AssemblesAllFields(t *testing.T) {
	fit := &model.GarchFit{
		AssetID: "A",
		Spec:    model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal},
		Mu:      0,
		AIC:     10, BIC: 12, LogLik: -5,
		Z: make([]float64, 100),
	}
	rng := rand.New(rand.NewSource(4))
	for i := range fit.Z {
		fit.Z[i] = rng.NormFloat64()
	}
	testReturns := make([]float64, 50)
	testH := make([]float64, 50)
	for i := range testReturns {
		testReturns[i] = 0.01 * rng.NormFloat64()
		testH[i] = 1e-4
	}
	sim := make([]float64, 200)
	for i := range sim {
		sim[i] = 0.01 * rng.NormFloat64()
	}

	report := BuildReport("A", fit.Spec, "split-0", ReportInputs{
		Fit:              fit,
		TestReturns:      testReturns,
		TestH:            testH,
		VaRHitSeries:     map[float64][]int{0.05: make([]int, 50)},
		VaRLevelSeries:   map[float64][]float64{0.05: make([]float64, 50)},
		SimulatedReturns: sim,
		ACFLags:          5,
	})

	if report.AssetID != "A" || report.SplitID != "split-0" {
		t.Fatalf("report identity fields wrong: %+v", report)
	}
	if len(report.VaR) != 1 {
		t.Fatalf("expected 1 VaR backtest result, got %d", len(report.VaR))
	}
	if math.IsNaN(report.MSE) || math.IsNaN(report.MAE) {
		t.Fatalf("MSE/MAE should be finite: mse=%v mae=%v", report.MSE, report.MAE)
	}
}
