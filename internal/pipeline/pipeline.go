// Package pipeline binds the returns preparer, GARCH engine, NF
// subsystem, NF-GARCH simulator and evaluator into one orchestrated run
// per (asset, model spec, split). It runs a worker pool bounded by
// runtime.GOMAXPROCS, since per-asset work is independent.
package pipeline

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"garchflow/internal/config"
	"garchflow/internal/errs"
	"garchflow/internal/eval"
	"garchflow/internal/flow"
	"garchflow/internal/garch"
	"garchflow/internal/model"
	"garchflow/internal/nfgarch"
	"garchflow/internal/returns"
)

// Job identifies one unit of work: fit+train+simulate+evaluate one
// ModelSpec against one asset's one split.
type Job struct {
	AssetID string
	Spec    model.ModelSpec
	SplitID string
	Window  returns.Window
}

// Result is keyed by (AssetID, Spec, SplitID) regardless of completion
// order, so results remain well-defined whichever job finishes first.
type Result struct {
	Job    Job
	Report model.EvalReport
	Err    error
}

// Run executes every job in jobs with a worker pool bounded by
// runtime.GOMAXPROCS(0), applying cfg.TimeoutSeconds as each job's
// wall-clock cap.
func Run(ctx context.Context, log zerolog.Logger, cfg config.Config, jobs []Job) ([]Result, error) {
	if cfg.Engine == config.EngineExternal {
		return nil, errs.New(errs.KindSpec, "engine=external is outside this build's scope")
	}

	results := make([]Result, len(jobs))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			jobCtx := ctx
			var cancel context.CancelFunc
			if cfg.TimeoutSeconds > 0 {
				jobCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
				defer cancel()
			}

			report, err := runOne(jobCtx, cfg, job)
			results[i] = Result{Job: job, Report: report, Err: err}
			if err != nil {
				log.Warn().Str("asset", job.AssetID).Str("split", job.SplitID).Err(err).Msg("job failed")
			}
		}(i, job)
	}
	wg.Wait()

	return results, nil
}

func runOne(ctx context.Context, cfg config.Config, job Job) (model.EvalReport, error) {
	fit, err := garch.Fit(ctx, job.AssetID, job.Window.Train, job.Spec, garch.FitOptions{})
	if err != nil {
		return model.EvalReport{}, err
	}

	nf, err := flow.Train(ctx, fit.ID, fit.Z, flow.TrainOptions{
		Config: flow.Config{Blocks: cfg.NFBlocks, Width: cfg.NFWidth},
		Seed:   cfg.NFSeed,
	})
	if err != nil {
		return model.EvalReport{}, err
	}
	tf := flow.NewTrainedFlow(nf)

	// NF training, NF-GARCH sampling and the GARCH MC forecast fallback
	// each take a distinct seed derived from cfg.NFSeed so none of the
	// three RNG streams ever collide.
	simPaths, err := nfgarch.Simulate(ctx, fit, tf, nfgarch.SimulateOptions{
		Horizon:    len(job.Window.Test.R),
		Replicates: cfg.MCReplicates,
		Seed:       cfg.NFSeed + 2,
	})
	if err != nil {
		return model.EvalReport{}, err
	}

	h, err := garch.ForecastVariance(ctx, fit, len(job.Window.Test.R), garch.ForecastOptions{
		MCReplicates: cfg.MCReplicates,
		Seed:         cfg.NFSeed + 1,
	})
	if err != nil {
		return model.EvalReport{}, err
	}

	simReturns := pooledEndpoints(simPaths)
	nfZ := nfOneStepInnovations(fit, simPaths)
	hitSeries, levelSeries := varHitSeries(cfg.VaRLevels, fit, nfZ, h, job.Window.Test.R)

	report := eval.BuildReport(job.AssetID, job.Spec, job.SplitID, eval.ReportInputs{
		Fit:              fit,
		TestReturns:      job.Window.Test.R,
		TestH:            h,
		VaRHitSeries:     hitSeries,
		VaRLevelSeries:   levelSeries,
		SimulatedReturns: simReturns,
	})
	return report, nil
}

// nfOneStepInnovations recovers the trained flow's implied standardized
// one-step-ahead innovation draw from each simulated path, z = (r[0] -
// mu) / sqrt(h[0]), giving an empirical sample of the flow's output
// distribution to quantile against for VaR.
func nfOneStepInnovations(fit *model.GarchFit, paths []*model.SimPath) []float64 {
	out := make([]float64, 0, len(paths))
	for _, p := range paths {
		if len(p.R) == 0 || len(p.H) == 0 || p.H[0] <= 0 {
			continue
		}
		out = append(out, (p.R[0]-fit.Mu)/math.Sqrt(p.H[0]))
	}
	return out
}

// minEmpiricalQuantileSamples is the smallest flow-sampled innovation
// pool considered stable enough to quantile against directly; below
// this, the fit's own parametric innovation quantile is used instead.
const minEmpiricalQuantileSamples = 30

// varQuantile returns the tail-probability quantile used to build a
// VaR level: the trained flow's empirical quantile when enough
// replicates are available, otherwise the fit's own innovation law's
// quantile.
func varQuantile(fit *model.GarchFit, nfZ []float64, tailAlpha float64) float64 {
	if len(nfZ) >= minEmpiricalQuantileSamples {
		return garch.EmpiricalQuantile(nfZ, tailAlpha)
	}
	return garch.InnovationQuantile(fit, tailAlpha)
}

func pooledEndpoints(paths []*model.SimPath) []float64 {
	out := make([]float64, len(paths))
	for i, p := range paths {
		if len(p.R) > 0 {
			out[i] = p.R[len(p.R)-1]
		}
	}
	return out
}

// varHitSeries builds the 0/1 VaR-violation series and the realized
// VaR level series for each configured confidence level, comparing
// realized returns against mu + Q_tailAlpha(innovation)*sqrt(h).
// cfg.VaRLevels holds confidence levels (e.g. 0.95, 0.99) per the
// config layer's convention; both returned maps are keyed by the
// corresponding tail probability (1-confidence, e.g. 0.05, 0.01) since
// that is the nominal violation rate eval.VaRBacktest expects.
func varHitSeries(confidenceLevels []float64, fit *model.GarchFit, nfZ []float64, h, realized []float64) (hitSeries map[float64][]int, levelSeries map[float64][]float64) {
	hitSeries = make(map[float64][]int, len(confidenceLevels))
	levelSeries = make(map[float64][]float64, len(confidenceLevels))
	for _, confidence := range confidenceLevels {
		tailAlpha := 1 - confidence
		q := varQuantile(fit, nfZ, tailAlpha)

		hits := make([]int, len(realized))
		levels := make([]float64, len(realized))
		for t := range realized {
			if t >= len(h) {
				break
			}
			hv := h[t]
			if hv < 0 {
				hv = 0
			}
			varLevel := fit.Mu + q*math.Sqrt(hv)
			levels[t] = varLevel
			if realized[t] < varLevel {
				hits[t] = 1
			}
		}
		hitSeries[tailAlpha] = hits
		levelSeries[tailAlpha] = levels
	}
	return hitSeries, levelSeries
}
