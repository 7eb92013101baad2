package garch

import (
	"context"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// FitOptions controls the quasi-Newton optimizer's stopping criteria.
type FitOptions struct {
	GradientTolerance float64 // default 1e-6
	FunctionTolerance float64 // default 1e-8
	MaxIterations     int     // default 1000
	// Chunk bounds how many major iterations run between cancellation
	// checks, keeping the optimizer's inner loop cooperative.
	Chunk int
}

func (o FitOptions) withDefaults() FitOptions {
	if o.GradientTolerance <= 0 {
		o.GradientTolerance = 1e-6
	}
	if o.FunctionTolerance <= 0 {
		o.FunctionTolerance = 1e-8
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 1000
	}
	if o.Chunk <= 0 {
		o.Chunk = 100
	}
	return o
}

// Fit estimates a ModelSpec by quasi-Newton minimization of the
// negative log-likelihood, starting from a documented default initial
// point. It cooperatively checks ctx between optimizer chunks and
// returns ErrCancelled/ErrTimeout with the best iterate seen on early
// exit.
func Fit(ctx context.Context, assetID string, r model.ReturnSeries, spec model.ModelSpec, opts FitOptions) (*model.GarchFit, error) {
	opts = opts.withDefaults()

	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	if len(r.R) < 10 {
		return nil, errs.New(errs.KindInvalidInput, "series too short for asset %s: %d", assetID, len(r.R))
	}

	mean := sampleMean(r.R)
	svar := sampleVariance(r.R, mean)
	if svar < 1e-20 {
		return nil, errs.New(errs.KindConstraints, "zero-variance training slice for asset %s", assetID)
	}

	mu0, vp0 := DefaultInitialParams(spec.Variance, mean, svar)
	theta0 := ParamsToTheta(spec.Variance, spec.EstimateThreshold, mu0, vp0)
	shape0 := defaultShape(spec.Innovation)
	theta0 = append(theta0, EncodeInnovationShape(spec.Innovation, shape0)...)

	negLogLik := func(theta []float64) float64 {
		mu, vp := ThetaToParams(spec.Variance, spec.EstimateThreshold, theta)
		vlen := 1 + thetaLen(spec.Variance)
		if spec.Variance == model.TGARCH && spec.EstimateThreshold {
			vlen++
		}
		shape := DecodeInnovationShape(spec.Innovation, theta[vlen:])

		h, eps := Recurse(spec.Variance, vp, mu, r.R)
		var ll float64
		for t := 1; t < len(r.R); t++ {
			if h[t] <= 0 || math.IsNaN(h[t]) || math.IsInf(h[t], 0) {
				return math.Inf(1)
			}
			z := eps[t] / math.Sqrt(h[t])
			d := LogDensity(spec.Innovation, shape, z, h[t])
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return math.Inf(1)
			}
			ll += d
		}
		return -ll
	}

	problem := optimize.Problem{
		Func: negLogLik,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, negLogLik, x, nil)
		},
	}

	bestX := append([]float64(nil), theta0...)
	bestF := negLogLik(theta0)
	iterDone := 0
	converged := false

	for iterDone < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			kind := errs.KindCancelled
			if err == context.DeadlineExceeded {
				kind = errs.KindTimeout
			}
			return buildFit(assetID, spec, r, bestX, bestF, false), errs.New(kind, "fit cancelled for asset %s after %d iterations", assetID, iterDone)
		}

		chunk := opts.Chunk
		if iterDone+chunk > opts.MaxIterations {
			chunk = opts.MaxIterations - iterDone
		}

		settings := &optimize.Settings{
			MajorIterations:   chunk,
			GradientThreshold: opts.GradientTolerance,
			InitValues: &optimize.Location{
				X: bestX,
			},
		}

		result, err := optimize.Minimize(problem, bestX, settings, &optimize.BFGS{})
		if err != nil {
			// Fall back to a derivative-free method once BFGS can no
			// longer make progress.
			result, err = optimize.Minimize(problem, bestX, settings, &optimize.NelderMead{})
			if err != nil {
				break
			}
		}

		prevBestF := bestF
		if result.F < bestF {
			bestF = result.F
			bestX = append(bestX[:0], result.X...)
		}
		iterDone += result.Stats.MajorIterations
		if result.Stats.MajorIterations == 0 {
			iterDone++ // guarantee progress even if the method reports 0
		}

		grad := make([]float64, len(bestX))
		fd.Gradient(grad, negLogLik, bestX, nil)
		gnorm := 0.0
		for _, g := range grad {
			gnorm += g * g
		}
		if math.Sqrt(gnorm) < opts.GradientTolerance {
			converged = true
			break
		}
		if prevBestF-bestF < opts.FunctionTolerance {
			converged = true
			break
		}
	}

	if math.IsInf(bestF, 0) || math.IsNaN(bestF) {
		return nil, errs.New(errs.KindNumerics, "non-finite likelihood for asset %s", assetID)
	}

	fit := buildFit(assetID, spec, r, bestX, bestF, converged)
	_, vp := ThetaToParams(spec.Variance, spec.EstimateThreshold, bestX)
	ok, _ := Stationary(spec.Variance, vp)
	if !converged && !ok {
		fit.Converged = false
	}
	return fit, nil
}

func buildFit(assetID string, spec model.ModelSpec, r model.ReturnSeries, theta []float64, negLL float64, converged bool) *model.GarchFit {
	mu, vp := ThetaToParams(spec.Variance, spec.EstimateThreshold, theta)
	h, eps := Recurse(spec.Variance, vp, mu, r.R)
	z := make([]float64, len(r.R))
	for t := range r.R {
		if h[t] > 0 {
			z[t] = eps[t] / math.Sqrt(h[t])
		}
	}

	k := len(theta) // free parameters including innovation shape
	T := float64(len(r.R))
	ll := -negLL
	aic := 2*float64(k) - 2*ll
	bic := float64(k)*math.Log(T) - 2*ll

	return &model.GarchFit{
		ID:        model.FitID(assetID, spec, r.DataChecksum()),
		AssetID:   assetID,
		Spec:      spec,
		Mu:        mu,
		Theta:     theta,
		H:         h,
		Eps:       eps,
		Z:         z,
		LogLik:    ll,
		AIC:       aic,
		BIC:       bic,
		K:         k,
		Converged: converged,
	}
}

func defaultShape(inn model.InnovationFamily) InnovationShape {
	switch inn {
	case model.StudentT, model.SkewStudentT:
		return InnovationShape{Nu: 8, Xi: 1}
	default:
		return InnovationShape{}
	}
}

func validateSpec(spec model.ModelSpec) error {
	switch spec.Variance {
	case model.SGARCH, model.EGARCH, model.GJRGARCH, model.TGARCH:
	default:
		return errs.New(errs.KindSpec, "unknown variance family %v", spec.Variance)
	}
	switch spec.Innovation {
	case model.Normal, model.StudentT, model.SkewStudentT:
	default:
		return errs.New(errs.KindSpec, "unknown innovation family %v", spec.Innovation)
	}
	return nil
}
