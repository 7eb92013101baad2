package garch

import (
	"context"
	"math"
	"math/rand"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// ForecastOptions controls h-step-ahead variance forecasting.
type ForecastOptions struct {
	// MCReplicates is the Monte-Carlo replicate count used for families
	// without a closed form (eGARCH, TGARCH). Defaults to at least 5000.
	MCReplicates int
	Seed         int64
}

func (o ForecastOptions) withDefaults() ForecastOptions {
	if o.MCReplicates <= 0 {
		o.MCReplicates = 5000
	}
	return o
}

// ForecastVariance produces h-step-ahead conditional-variance
// forecasts h[T+1..T+steps]. sGARCH/gjrGARCH use a closed-form
// recursion; eGARCH/TGARCH fall back to Monte-Carlo averaging under the
// fit's innovation law, using a distinct, explicitly-seeded RNG stream
// that never touches the simulator's or the flow's randomness.
func ForecastVariance(ctx context.Context, fit *model.GarchFit, steps int, opts ForecastOptions) ([]float64, error) {
	opts = opts.withDefaults()
	if steps <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "steps must be > 0")
	}
	_, vp := ThetaToParams(fit.Spec.Variance, fit.Spec.EstimateThreshold, fit.Theta)
	hLast := fit.H[len(fit.H)-1]
	epsLast := fit.Eps[len(fit.Eps)-1]

	switch fit.Spec.Variance {
	case model.SGARCH, model.GJRGARCH:
		return closedFormForecast(fit.Spec.Variance, vp, hLast, epsLast, steps), nil
	case model.EGARCH, model.TGARCH:
		return monteCarloForecast(ctx, fit, vp, hLast, epsLast, steps, opts)
	default:
		return nil, errs.New(errs.KindSpec, "unknown variance family %v", fit.Spec.Variance)
	}
}

// closedFormForecast applies the analytic recursion: h[T+1] from the
// one-step recursion, h[T+k] = omega + (alpha+beta+
// 1/2*gamma*E[1]) * h[T+k-1] for k>=2, with E[1[eps<0]]=1/2 under
// symmetric innovations.
func closedFormForecast(family model.VarianceFamily, vp VarianceParams, hLast, epsLast float64, steps int) []float64 {
	out := make([]float64, steps)
	out[0] = StepVariance(family, vp, hLast, epsLast)

	var omega, persistence float64
	switch p := vp.(type) {
	case SGARCHParams:
		omega, persistence = p.Omega, p.Alpha+p.Beta
	case GJRParams:
		omega, persistence = p.Omega, p.Alpha+p.Beta+0.5*p.Gamma
	}
	for k := 1; k < steps; k++ {
		out[k] = omega + persistence*out[k-1]
	}
	return out
}

// monteCarloForecast averages the recursion forward under replicated
// innovation draws for families with no stable closed form.
func monteCarloForecast(ctx context.Context, fit *model.GarchFit, vp VarianceParams, hLast, epsLast float64, steps int, opts ForecastOptions) ([]float64, error) {
	shape := DecodeInnovationShape(fit.Spec.Innovation, fit.Theta[len(fit.Theta)-innovationShapeLen(fit.Spec.Innovation):])
	rng := rand.New(rand.NewSource(opts.Seed))

	acc := make([]float64, steps)
	for rep := 0; rep < opts.MCReplicates; rep++ {
		if rep%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.New(kindFor(err), "MC forecast cancelled after %d/%d replicates", rep, opts.MCReplicates)
			}
		}
		h, eps := hLast, epsLast
		for k := 0; k < steps; k++ {
			h = StepVariance(fit.Spec.Variance, vp, h, eps)
			z := drawInnovation(rng, fit.Spec.Innovation, shape)
			eps = z * math.Sqrt(h)
			acc[k] += h
		}
	}
	for k := range acc {
		acc[k] /= float64(opts.MCReplicates)
	}
	return acc, nil
}

func kindFor(err error) errs.Kind {
	if err == context.DeadlineExceeded {
		return errs.KindTimeout
	}
	return errs.KindCancelled
}

// drawInnovation samples one standardized innovation from the fit's
// innovation law using rng, used by both Monte-Carlo forecasting and
// (indirectly, via a different stream) parametric-baseline simulation.
func drawInnovation(rng *rand.Rand, inn model.InnovationFamily, shape InnovationShape) float64 {
	switch inn {
	case model.Normal:
		return rng.NormFloat64()
	case model.StudentT:
		return studentTDraw(rng, shape.Nu)
	case model.SkewStudentT:
		return skewStudentTDraw(rng, shape.Nu, shape.Xi)
	default:
		return rng.NormFloat64()
	}
}

func studentTDraw(rng *rand.Rand, nu float64) float64 {
	// Standard construction: Z / sqrt(V/nu), Z~N(0,1), V~ChiSq(nu),
	// rescaled to unit variance.
	z := rng.NormFloat64()
	v := chiSquareDraw(rng, nu)
	raw := z / math.Sqrt(v/nu)
	if nu > 2 {
		raw /= math.Sqrt(nu / (nu - 2))
	}
	return raw
}

func chiSquareDraw(rng *rand.Rand, k float64) float64 {
	// Sum of squares of k independent standard normals generalizes via
	// a Gamma(k/2, 2) draw for non-integer k.
	return 2 * gammaDraw(rng, k/2)
}

// gammaDraw implements Marsaglia-Tsang for shape alpha>0, scale 1.
func gammaDraw(rng *rand.Rand, alpha float64) float64 {
	if alpha < 1 {
		u := rng.Float64()
		return gammaDraw(rng, alpha+1) * math.Pow(u, 1/alpha)
	}
	d := alpha - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

func skewStudentTDraw(rng *rand.Rand, nu, xi float64) float64 {
	t := studentTDraw(rng, nu)
	if xi <= 0 {
		xi = 1
	}
	m, s := skewStudentTMomentAdjust(nu, xi)
	var x float64
	if rng.Float64() < 1/(xi*xi+1) {
		x = -math.Abs(t) * xi
	} else {
		x = math.Abs(t) / xi
	}
	return (x - m) / s
}
