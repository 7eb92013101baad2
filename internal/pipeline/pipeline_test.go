package pipeline

import (
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"garchflow/internal/config"
	"garchflow/internal/errs"
	"garchflow/internal/model"
	"garchflow/internal/returns"
)

func syntheticWindow(seed int64, n int) returns.Window {
	rng := rand.New(rand.NewSource(seed))
	train := make([]float64, n)
	for i := range train {
		train[i] = 0.01 * rng.NormFloat64()
	}
	test := make([]float64, 20)
	for i := range test {
		test[i] = 0.01 * rng.NormFloat64()
	}
	return returns.Window{
		Train: model.ReturnSeries{AssetID: "A", R: train},
		Test:  model.ReturnSeries{AssetID: "A", R: test},
	}
}

func TestRun_SingleJob_ProducesReport(t *testing.T) {
	cfg := config.Config{
		Engine:       config.EngineManual,
		Split:        config.SplitChrono,
		NFBlocks:     2,
		NFWidth:      4,
		NFEpochs:     20,
		MCReplicates: 20,
		VaRLevels:    []float64{0.95},
		OutputDir:    t.TempDir(),
	}
	jobs := []Job{
		{AssetID: "A", SplitID: "split-0", Spec: model.ModelSpec{Variance: model.SGARCH, Innovation: model.Normal}, Window: syntheticWindow(1, 300)},
	}

	log := zerolog.New(os.Stderr)
	results, err := Run(context.Background(), log, cfg, jobs)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("job failed: %v", results[0].Err)
	}
	if results[0].Report.AssetID != "A" {
		t.Errorf("report AssetID = %q, want A", results[0].Report.AssetID)
	}
}

func TestRun_ExternalEngine_RejectsWithSpecError(t *testing.T) {
	cfg := config.Config{Engine: config.EngineExternal}
	log := zerolog.New(os.Stderr)
	_, err := Run(context.Background(), log, cfg, nil)
	if errs.KindOf(err) != errs.KindSpec {
		t.Fatalf("Run(engine=external) kind = %v, want ERR_SPEC", errs.KindOf(err))
	}
}
