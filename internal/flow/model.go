package flow

import (
	"math/rand"

	"garchflow/internal/model"
)

// Config controls the coupling stack's architecture.
type Config struct {
	Blocks int // number of alternating-parity coupling blocks
	Width  int // hidden-layer width of each block's conditioner network
}

func (c Config) withDefaults() Config {
	if c.Blocks <= 0 {
		c.Blocks = 4
	}
	if c.Width <= 0 {
		c.Width = 8
	}
	return c
}

// weightsPerBlock returns how many flat optimizer-vector entries one
// block's CouplingWeights occupies: W1(width) + B1(width) + W2(2*width) + B2(2).
func weightsPerBlock(width int) int {
	return width + width + 2*width + 2
}

// initWeights builds Config.Blocks blocks of alternating parity, each
// with small random initial weights so the stack starts close to the
// identity map (out[0]~0 keeps exp(logScale)~1, shift~0).
func initWeights(rng *rand.Rand, cfg Config) []model.CouplingWeights {
	blocks := make([]model.CouplingWeights, cfg.Blocks)
	for b := 0; b < cfg.Blocks; b++ {
		w := model.CouplingWeights{
			W1:     make([]float64, cfg.Width),
			B1:     make([]float64, cfg.Width),
			W2:     make([]float64, 2*cfg.Width),
			B2:     make([]float64, 2),
			Parity: b % 2,
		}
		for i := range w.W1 {
			w.W1[i] = 0.1 * rng.NormFloat64()
		}
		for i := range w.W2 {
			w.W2[i] = 0.1 * rng.NormFloat64()
		}
		blocks[b] = w
	}
	return blocks
}

// flatten packs a block stack into a single optimizer vector, the
// layout unflatten reads back.
func flatten(blocks []model.CouplingWeights) []float64 {
	width := len(blocks[0].B1)
	n := weightsPerBlock(width)
	theta := make([]float64, 0, n*len(blocks))
	for _, w := range blocks {
		theta = append(theta, w.W1...)
		theta = append(theta, w.B1...)
		theta = append(theta, w.W2...)
		theta = append(theta, w.B2...)
	}
	return theta
}

// unflatten is flatten's inverse; it reuses the parity pattern already
// present in template (only the weight values move).
func unflatten(theta []float64, template []model.CouplingWeights) []model.CouplingWeights {
	width := len(template[0].B1)
	per := weightsPerBlock(width)
	blocks := make([]model.CouplingWeights, len(template))
	for b := range template {
		off := b * per
		w := model.CouplingWeights{
			W1:     append([]float64(nil), theta[off:off+width]...),
			B1:     append([]float64(nil), theta[off+width:off+2*width]...),
			W2:     append([]float64(nil), theta[off+2*width:off+4*width]...),
			B2:     append([]float64(nil), theta[off+4*width:off+4*width+2]...),
			Parity: template[b].Parity,
		}
		blocks[b] = w
	}
	return blocks
}
