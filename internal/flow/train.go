package flow

import (
	"context"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// TrainOptions controls the coupling stack's optimizer contract, the
// same quasi-Newton-with-fallback shape internal/garch uses for MLE
// fitting.
type TrainOptions struct {
	Config
	MaxEpochs         int
	GradientTolerance float64
	PatienceEpochs    int // epochs with no loss improvement before early stopping
	Seed              int64
	Chunk             int
}

func (o TrainOptions) withDefaults() TrainOptions {
	o.Config = o.Config.withDefaults()
	if o.MaxEpochs <= 0 {
		o.MaxEpochs = 500
	}
	if o.GradientTolerance <= 0 {
		o.GradientTolerance = 1e-5
	}
	if o.PatienceEpochs <= 0 {
		o.PatienceEpochs = 20
	}
	if o.Chunk <= 0 {
		o.Chunk = 25
	}
	return o
}

// Train fits a coupling stack on standardized residuals z, lifting each
// z[t] (t>=1) into the pair (z[t], z[t-1]) before handing it to the
// stack. Training maximizes the induced data-space
// log-likelihood via gonum/optimize's BFGS, cooperatively checking ctx
// between chunks the way internal/garch.Fit does. A loss that
// fails to improve for PatienceEpochs epochs stops early; a loss that
// diverges to a non-finite value is retried once from a smaller random
// init before giving up with ERR_TRAINING_DIVERGED.
func Train(ctx context.Context, sourceFit uuid.UUID, z []float64, opts TrainOptions) (*model.NFModel, error) {
	opts = opts.withDefaults()
	if len(z) < 8 {
		return nil, errs.New(errs.KindInvalidInput, "too few residuals to train a flow: %d", len(z))
	}
	pairs := liftPairs(z)

	attempt := func(initScale float64) (*model.NFModel, error) {
		rng := rand.New(rand.NewSource(opts.Seed))
		template := initWeights(rng, opts.Config)
		scaleInit(template, initScale)
		theta0 := flatten(template)

		negLogLik := func(theta []float64) float64 {
			blocks := unflatten(theta, template)
			var nll float64
			for _, p := range pairs {
				y, logDet := Forward(blocks, p)
				ld := baseLogDensity(y) + logDet
				if math.IsNaN(ld) || math.IsInf(ld, 0) {
					return math.Inf(1)
				}
				nll -= ld
			}
			return nll
		}

		problem := optimize.Problem{
			Func: negLogLik,
			Grad: func(grad, x []float64) {
				fd.Gradient(grad, negLogLik, x, nil)
			},
		}

		bestX := append([]float64(nil), theta0...)
		bestF := negLogLik(theta0)
		lossHistory := []float64{bestF}
		sinceImprove := 0
		epochsDone := 0

		for epochsDone < opts.MaxEpochs {
			if err := ctx.Err(); err != nil {
				kind := errs.KindCancelled
				if err == context.DeadlineExceeded {
					kind = errs.KindTimeout
				}
				return nfModelFrom(sourceFit, unflatten(bestX, template), lossHistory, false), errs.New(kind, "flow training cancelled after %d epochs", epochsDone)
			}

			chunk := opts.Chunk
			if epochsDone+chunk > opts.MaxEpochs {
				chunk = opts.MaxEpochs - epochsDone
			}
			settings := &optimize.Settings{
				MajorIterations:   chunk,
				GradientThreshold: opts.GradientTolerance,
				InitValues:        &optimize.Location{X: bestX},
			}

			result, err := optimize.Minimize(problem, bestX, settings, &optimize.BFGS{})
			if err != nil {
				result, err = optimize.Minimize(problem, bestX, settings, &optimize.NelderMead{})
				if err != nil {
					break
				}
			}

			if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
				return nil, errs.New(errs.KindTrainingDiverged, "flow loss diverged at epoch %d", epochsDone)
			}

			improved := result.F < bestF-1e-9
			if improved {
				bestF = result.F
				bestX = append(bestX[:0], result.X...)
				sinceImprove = 0
			} else {
				sinceImprove += opts.Chunk
			}
			lossHistory = append(lossHistory, bestF)

			iters := result.Stats.MajorIterations
			if iters == 0 {
				iters = 1
			}
			epochsDone += iters

			if sinceImprove >= opts.PatienceEpochs {
				break
			}
		}

		if math.IsInf(bestF, 0) || math.IsNaN(bestF) {
			return nil, errs.New(errs.KindTrainingDiverged, "flow loss non-finite after training")
		}
		return nfModelFrom(sourceFit, unflatten(bestX, template), lossHistory, true), nil
	}

	nf, err := attempt(0.1)
	if errs.KindOf(err) == errs.KindTrainingDiverged {
		// One retry from a smaller, more conservative initial scale
		// before surfacing the divergence to the caller as a terminal
		// Diverged state.
		nf, err = attempt(0.02)
		if errs.KindOf(err) == errs.KindTrainingDiverged {
			return &model.NFModel{SourceFit: sourceFit, Blocks: opts.Blocks, Width: opts.Width, Diverged: true}, err
		}
	}
	return nf, err
}

func nfModelFrom(sourceFit uuid.UUID, blocks []model.CouplingWeights, lossHistory []float64, converged bool) *model.NFModel {
	return &model.NFModel{
		ID:          model.FlowID(sourceFit, lossHistory),
		SourceFit:   sourceFit,
		Blocks:      len(blocks),
		Width:       len(blocks[0].B1),
		Weights:     blocks,
		LossHistory: lossHistory,
		Diverged:    !converged,
	}
}

// liftPairs builds the lagged 2-vectors (z[t], z[t-1]) for t=1..len(z)-1.
func liftPairs(z []float64) []pair {
	pairs := make([]pair, len(z)-1)
	for t := 1; t < len(z); t++ {
		pairs[t-1] = pair{z[t], z[t-1]}
	}
	return pairs
}

func scaleInit(blocks []model.CouplingWeights, scale float64) {
	factor := scale / 0.1
	for i := range blocks {
		for j := range blocks[i].W1 {
			blocks[i].W1[j] *= factor
		}
		for j := range blocks[i].W2 {
			blocks[i].W2[j] *= factor
		}
	}
}
