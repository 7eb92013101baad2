package flow

import (
	"math/rand"
	"sync"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// TrainedFlow wraps a model.NFModel with a mutex-guarded
// Initialized->Training->Trained|Diverged->Immutable lifecycle, the
// same way an ARIMA model guards its trained state for safe concurrent
// read access after training.
type TrainedFlow struct {
	mu       sync.RWMutex
	nf       *model.NFModel
	trained  bool
	diverged bool
}

// NewTrainedFlow wraps a freshly trained (or diverged) NFModel.
func NewTrainedFlow(nf *model.NFModel) *TrainedFlow {
	return &TrainedFlow{nf: nf, trained: !nf.Diverged, diverged: nf.Diverged}
}

func (f *TrainedFlow) IsTrained() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.trained
}

func (f *TrainedFlow) IsDiverged() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.diverged
}

// Sample draws n i.i.d. innovations from the trained flow:
// for each draw, a base-space 2-vector is sampled from the standard
// normal and inverted through the coupling stack; only the first
// coordinate of the inverted pair is kept, matching the lift/drop
// convention used when pairs were built for training.
func (f *TrainedFlow) Sample(n int, seed int64) (*model.InnovationSample, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.trained {
		return nil, errs.New(errs.KindInvalidInput, "flow not trained")
	}
	weights := f.nf.Weights

	rng := rand.New(rand.NewSource(seed))
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		base := pair{rng.NormFloat64(), rng.NormFloat64()}
		x := Inverse(weights, base)
		z[i] = x[0]
	}
	return &model.InnovationSample{NFModelID: f.nf.ID, Seed: seed, Z: z}, nil
}

// LogDensity evaluates the flow's induced data-space log-density at a
// lifted pair (z[t], z[t-1]).
func (f *TrainedFlow) LogDensity(zt, ztPrev float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.trained {
		return 0, errs.New(errs.KindInvalidInput, "flow not trained")
	}
	y, logDet := Forward(f.nf.Weights, pair{zt, ztPrev})
	return baseLogDensity(y) + logDet, nil
}

// Model returns the underlying immutable NFModel snapshot.
func (f *TrainedFlow) Model() *model.NFModel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nf
}
