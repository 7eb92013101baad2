package flow

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"garchflow/internal/errs"
)

func TestCoupling_ForwardInverseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	blocks := initWeights(rng, Config{Blocks: 4, Width: 6})

	x := pair{0.4, -0.9}
	y, _ := Forward(blocks, x)
	xBack := Inverse(blocks, y)

	if math.Abs(x[0]-xBack[0]) > 1e-8 || math.Abs(x[1]-xBack[1]) > 1e-8 {
		t.Fatalf("Forward/Inverse round trip mismatch: got %v, want %v", xBack, x)
	}
}

func TestFlattenUnflatten_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	blocks := initWeights(rng, Config{Blocks: 3, Width: 5})
	theta := flatten(blocks)
	back := unflatten(theta, blocks)

	for i := range blocks {
		if !almostEqualSlice(blocks[i].W1, back[i].W1) ||
			!almostEqualSlice(blocks[i].B1, back[i].B1) ||
			!almostEqualSlice(blocks[i].W2, back[i].W2) ||
			!almostEqualSlice(blocks[i].B2, back[i].B2) {
			t.Fatalf("block %d round trip mismatch", i)
		}
	}
}

func almostEqualSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestTrain_SyntheticResiduals_ConvergesAndSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	z := make([]float64, 200)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	sourceFit := uuid.NewSHA1(uuid.Nil, []byte("test-fit"))

	nf, err := Train(context.Background(), sourceFit, z, TrainOptions{
		Config:    Config{Blocks: 2, Width: 4},
		MaxEpochs: 60,
		Seed:      5,
	})
	if err != nil {
		t.Fatalf("Train returned error: %v", err)
	}
	if nf.Diverged {
		t.Fatalf("flow reported diverged on well-behaved synthetic data")
	}

	tf := NewTrainedFlow(nf)
	sample, err := tf.Sample(100, 99)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if len(sample.Z) != 100 {
		t.Fatalf("Sample length = %d, want 100", len(sample.Z))
	}
	for _, v := range sample.Z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample contains non-finite value: %v", v)
		}
	}
}

func TestTrainedFlow_SampleBeforeTrain_IsInvalidInput(t *testing.T) {
	tf := &TrainedFlow{}
	_, err := tf.Sample(10, 1)
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("Sample on untrained flow kind = %v, want INVALID_INPUT", errs.KindOf(err))
	}
}
