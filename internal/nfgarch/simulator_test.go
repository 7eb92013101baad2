package nfgarch

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"garchflow/internal/errs"
	"garchflow/internal/flow"
	"garchflow/internal/garch"
	"garchflow/internal/model"
)

func fitSGARCH(t *testing.T, assetID string) *model.GarchFit {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	r := make([]float64, 400)
	for i := range r {
		r[i] = 0.01 * rng.NormFloat64()
	}
	spec := model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal}
	fit, err := garch.Fit(context.Background(), assetID, model.ReturnSeries{AssetID: assetID, R: r}, spec, garch.FitOptions{MaxIterations: 200})
	if err != nil {
		t.Fatalf("garch.Fit failed: %v", err)
	}
	return fit
}

func TestCheckIdentity_RejectsCrossContamination(t *testing.T) {
	fitA := fitSGARCH(t, "A")
	nfOther := &model.NFModel{ID: uuid.New(), SourceFit: uuid.New()} // trained on a different fit

	err := CheckIdentity(fitA, nfOther)
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("CheckIdentity kind = %v, want INVALID_INPUT for mismatched source fit", errs.KindOf(err))
	}
}

func TestSimulate_ProducesRequestedReplicates(t *testing.T) {
	fit := fitSGARCH(t, "A")
	nf, err := flow.Train(context.Background(), fit.ID, fit.Z, flow.TrainOptions{
		Config:    flow.Config{Blocks: 2, Width: 4},
		MaxEpochs: 40,
		Seed:      3,
	})
	if err != nil {
		t.Fatalf("flow.Train failed: %v", err)
	}
	tf := flow.NewTrainedFlow(nf)

	paths, err := Simulate(context.Background(), fit, tf, SimulateOptions{Horizon: 5, Replicates: 10, Seed: 42})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(paths) != 10 {
		t.Fatalf("Simulate returned %d paths, want 10", len(paths))
	}
	for _, p := range paths {
		if len(p.R) != 5 || len(p.H) != 5 {
			t.Fatalf("path has wrong horizon: len(R)=%d len(H)=%d", len(p.R), len(p.H))
		}
	}
}
