package garch

import (
	"math"
	"math/rand"
	"sort"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// SimulatePath iterates the family recursion forward using a caller-
// supplied standardized innovation sequence z̃[1..H]: h̃[k] is driven by
// ε̃[k-1]=z̃[k-1]*sqrt(h̃[k-1]), and r̃[k] = mu + z̃[k]*sqrt(h̃[k]). The
// output length always equals len(zTilde), and h̃[1] depends
// deterministically on the fit's last observed (h,eps).
func SimulatePath(fit *model.GarchFit, zTilde []float64) (*model.SimPath, error) {
	if len(zTilde) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "empty innovation sequence")
	}
	_, vp := ThetaToParams(fit.Spec.Variance, fit.Spec.EstimateThreshold, fit.Theta)

	H := len(zTilde)
	hPath := make([]float64, H)
	rPath := make([]float64, H)

	hPrev := fit.H[len(fit.H)-1]
	epsPrev := fit.Eps[len(fit.Eps)-1]

	for k := 0; k < H; k++ {
		hPath[k] = StepVariance(fit.Spec.Variance, vp, hPrev, epsPrev)
		if hPath[k] <= 0 || math.IsNaN(hPath[k]) || math.IsInf(hPath[k], 0) {
			return nil, errs.Atf(errs.KindNumerics, k, "non-positive simulated variance")
		}
		rPath[k] = fit.Mu + zTilde[k]*math.Sqrt(hPath[k])
		epsPrev = zTilde[k] * math.Sqrt(hPath[k])
		hPrev = hPath[k]
	}

	return &model.SimPath{
		GarchFitID: fit.ID,
		H:          hPath,
		R:          rPath,
	}, nil
}

// SimulateParametric draws its own innovations from the fit's
// parametric innovation law using an explicitly seeded RNG stream,
// producing the pure-GARCH baseline path that the NF-GARCH simulator
// is compared against.
func SimulateParametric(fit *model.GarchFit, horizon int, seed int64) (*model.SimPath, error) {
	shape := defaultShape(fit.Spec.Innovation)
	if n := innovationShapeLen(fit.Spec.Innovation); n > 0 && len(fit.Theta) >= n {
		shape = DecodeInnovationShape(fit.Spec.Innovation, fit.Theta[len(fit.Theta)-n:])
	}
	rng := rand.New(rand.NewSource(seed))
	z := make([]float64, horizon)
	for i := range z {
		z[i] = drawInnovation(rng, fit.Spec.Innovation, shape)
	}
	return SimulatePath(fit, z)
}

// PathAggregate is what AggregatePaths produces from M already-simulated
// paths: a mean path, percentile bands, and a VaR-relevant endpoint
// distribution.
type PathAggregate struct {
	MeanR       []float64
	MeanH       []float64
	Percentiles map[int][]float64 // percentile (e.g. 5, 95) -> per-step value of r
	Endpoints   []float64         // r at the final simulated step, across replicates
}

func AggregatePaths(paths []*model.SimPath, percentiles []int) PathAggregate {
	if len(paths) == 0 {
		return PathAggregate{}
	}
	H := len(paths[0].R)
	meanR := make([]float64, H)
	meanH := make([]float64, H)
	for _, p := range paths {
		for k := 0; k < H; k++ {
			meanR[k] += p.R[k]
			meanH[k] += p.H[k]
		}
	}
	n := float64(len(paths))
	for k := 0; k < H; k++ {
		meanR[k] /= n
		meanH[k] /= n
	}

	endpoints := make([]float64, len(paths))
	for i, p := range paths {
		endpoints[i] = p.R[H-1]
	}

	pctls := make(map[int][]float64, len(percentiles))
	for _, pct := range percentiles {
		series := make([]float64, H)
		col := make([]float64, len(paths))
		for k := 0; k < H; k++ {
			for i, p := range paths {
				col[i] = p.R[k]
			}
			series[k] = EmpiricalQuantile(col, float64(pct)/100.0)
		}
		pctls[pct] = series
	}

	return PathAggregate{MeanR: meanR, MeanH: meanH, Percentiles: pctls, Endpoints: endpoints}
}

// EmpiricalQuantile returns the q-quantile (q in [0,1]) of xs via
// linear interpolation between order statistics.
func EmpiricalQuantile(xs []float64, q float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
