package garch

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestRecurse_SGARCH_FirstStepDeterministic(t *testing.T) {
	vp := SGARCHParams{Omega: 1e-6, Alpha: 0.1, Beta: 0.85}
	r := []float64{0.01, -0.02, 0.015, -0.01, 0.02, -0.015, 0.01, 0.005}

	h, eps := Recurse(model.SGARCH, vp, 0.0, r)

	if len(h) != len(r) || len(eps) != len(r) {
		t.Fatalf("Recurse returned wrong lengths: h=%d eps=%d want %d", len(h), len(eps), len(r))
	}
	want := vp.Omega + vp.Alpha*eps[0]*eps[0] + vp.Beta*h[0]
	if !almostEqual(h[1], want, 1e-12) {
		t.Errorf("h[1] = %v, want %v", h[1], want)
	}
	for _, v := range h {
		if v <= 0 {
			t.Errorf("non-positive variance in path: %v", v)
		}
	}
}

func TestStationary_SGARCH(t *testing.T) {
	cases := []struct {
		alpha, beta float64
		wantOK      bool
	}{
		{0.1, 0.85, true},
		{0.5, 0.6, false}, // sums to 1.1, non-stationary
		{0, 0.9, false},   // alpha must be > 0
	}
	for _, c := range cases {
		ok, persist := Stationary(model.SGARCH, SGARCHParams{Omega: 1e-6, Alpha: c.alpha, Beta: c.beta})
		if ok != c.wantOK {
			t.Errorf("Stationary(alpha=%v,beta=%v) = %v (persistence=%v), want %v", c.alpha, c.beta, ok, persist, c.wantOK)
		}
	}
}

func TestThetaRoundTrip_SGARCH(t *testing.T) {
	mu, vp := DefaultInitialParams(model.SGARCH, 0.0002, 0.0004)
	theta := ParamsToTheta(model.SGARCH, false, mu, vp)
	mu2, vp2 := ThetaToParams(model.SGARCH, false, theta)

	want := vp.(SGARCHParams)
	got := vp2.(SGARCHParams)

	if !almostEqual(mu, mu2, 1e-9) {
		t.Errorf("mu round-trip: got %v want %v", mu2, mu)
	}
	if !almostEqual(want.Omega, got.Omega, 1e-9) || !almostEqual(want.Alpha, got.Alpha, 1e-9) || !almostEqual(want.Beta, got.Beta, 1e-9) {
		t.Errorf("SGARCHParams round-trip mismatch: want %+v got %+v", want, got)
	}
}

// TestFit_ConstantSeries_ReturnsConstraintsError checks that a
// zero-variance training slice fails with ERR_CONSTRAINTS.
func TestFit_ConstantSeries_ReturnsConstraintsError(t *testing.T) {
	r := model.ReturnSeries{AssetID: "FLAT", R: make([]float64, 20)} // all zeros
	spec := model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal}

	_, err := Fit(context.Background(), "FLAT", r, spec, FitOptions{})
	if errs.KindOf(err) != errs.KindConstraints {
		t.Fatalf("Fit(constant series) kind = %v, want ERR_CONSTRAINTS (err=%v)", errs.KindOf(err), err)
	}
}

// TestFit_SyntheticNormal_RecoversStationarity fits sGARCH-normal on a
// synthetic i.i.d.-shock series and checks it converges with
// alpha+beta < 1.
func TestFit_SyntheticNormal_RecoversStationarity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 600
	r := make([]float64, n)
	for i := range r {
		r[i] = 0.01 * rng.NormFloat64()
	}
	series := model.ReturnSeries{AssetID: "SYN", R: r}
	spec := model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal}

	fit, err := Fit(context.Background(), "SYN", series, spec, FitOptions{MaxIterations: 300})
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if math.IsNaN(fit.AIC) || math.IsNaN(fit.BIC) {
		t.Fatalf("AIC/BIC not finite: AIC=%v BIC=%v", fit.AIC, fit.BIC)
	}
	_, vp := ThetaToParams(spec.Variance, spec.EstimateThreshold, fit.Theta)
	ok, persistence := Stationary(spec.Variance, vp)
	if !ok {
		t.Errorf("fitted sGARCH not stationary: persistence=%v", persistence)
	}
}

func TestSimulatePath_LengthAndInitialCondition(t *testing.T) {
	fit := &model.GarchFit{
		AssetID: "A",
		Spec:    model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal},
		Mu:      0,
		Theta:   ParamsToTheta(model.SGARCH, false, 0, SGARCHParams{Omega: 1e-6, Alpha: 0.1, Beta: 0.8}),
		H:       []float64{1e-4, 1.2e-4},
		Eps:     []float64{0.005, -0.003},
	}
	zTilde := []float64{0.1, -0.2, 0.3}
	path, err := SimulatePath(fit, zTilde)
	if err != nil {
		t.Fatalf("SimulatePath error: %v", err)
	}
	if len(path.R) != len(zTilde) || len(path.H) != len(zTilde) {
		t.Fatalf("SimulatePath length mismatch: got %d, want %d", len(path.R), len(zTilde))
	}
	_, vp := ThetaToParams(fit.Spec.Variance, fit.Spec.EstimateThreshold, fit.Theta)
	wantH0 := StepVariance(fit.Spec.Variance, vp, fit.H[len(fit.H)-1], fit.Eps[len(fit.Eps)-1])
	if !almostEqual(path.H[0], wantH0, 1e-12) {
		t.Errorf("path.H[0] = %v, want %v (deterministic from last observed state)", path.H[0], wantH0)
	}
}
