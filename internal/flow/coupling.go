// Package flow implements the normalizing-flow subsystem: a RealNVP-style
// affine-coupling stack trained on a GARCH fit's standardized residuals,
// used to sample innovations whose distribution need not be Gaussian or
// (plain/skew) Student-t. Training uses gonum/optimize with
// finite-difference gradients from gonum/diff/fd; the coupling math and
// the standard-normal base density are written directly in this package.
package flow

import (
	"math"

	"garchflow/internal/model"
)

// logScaleClamp bounds the affine coupling's log-scale output so that
// exp(logScale) never explodes during early, poorly-conditioned training
// steps (the standard RealNVP stabilization trick).
const logScaleClamp = 3.0

// pair is the 2-vector a scalar standardized residual is lifted into
// before entering the coupling stack: (z[t], z[t-1]). Affine coupling
// needs at least two dimensions to have something to condition on; only
// the first coordinate is retained once a sample is inverted back out.
type pair [2]float64

// networkOut holds one coupling block's conditioner-network output.
type networkOut struct {
	logScale float64
	shift    float64
}

// evalNetwork runs the block's single-hidden-layer network on the
// conditioning scalar v, producing the (log-scale, shift) pair that
// drives the affine transform of the other coordinate.
func evalNetwork(w model.CouplingWeights, v float64) networkOut {
	width := len(w.B1)
	hidden := make([]float64, width)
	for j := 0; j < width; j++ {
		hidden[j] = math.Tanh(w.W1[j]*v + w.B1[j])
	}
	var rawLogScale, rawShift float64
	for j := 0; j < width; j++ {
		rawLogScale += w.W2[j] * hidden[j]
		rawShift += w.W2[width+j] * hidden[j]
	}
	rawLogScale += w.B2[0]
	rawShift += w.B2[1]
	return networkOut{
		logScale: logScaleClamp * math.Tanh(rawLogScale),
		shift:    rawShift,
	}
}

// forwardBlock maps data-space x to latent-space y through one coupling
// block and returns the log-Jacobian-determinant contribution.
func forwardBlock(w model.CouplingWeights, x pair) (y pair, logDet float64) {
	cond, xform := splitParity(w.Parity, x)
	out := evalNetwork(w, cond)
	transformed := xform*math.Exp(out.logScale) + out.shift
	y = joinParity(w.Parity, cond, transformed)
	return y, out.logScale
}

// inverseBlock is forwardBlock's inverse: latent-space y to data-space x.
func inverseBlock(w model.CouplingWeights, y pair) pair {
	cond, xform := splitParity(w.Parity, y)
	out := evalNetwork(w, cond)
	untransformed := (xform - out.shift) * math.Exp(-out.logScale)
	return joinParity(w.Parity, cond, untransformed)
}

// splitParity picks which coordinate is held fixed as the conditioner
// and which is affine-transformed, alternating by block parity so every
// coordinate gets transformed across the stack.
func splitParity(parity int, p pair) (cond, xform float64) {
	if parity == 0 {
		return p[1], p[0]
	}
	return p[0], p[1]
}

func joinParity(parity int, cond, xform float64) pair {
	if parity == 0 {
		return pair{xform, cond}
	}
	return pair{cond, xform}
}

// Forward runs the full coupling stack data-space -> latent-space,
// summing the log-Jacobian-determinant across blocks.
func Forward(weights []model.CouplingWeights, x pair) (y pair, logDet float64) {
	y = x
	for _, w := range weights {
		var d float64
		y, d = forwardBlock(w, y)
		logDet += d
	}
	return y, logDet
}

// Inverse runs the full coupling stack latent-space -> data-space, in
// reverse block order.
func Inverse(weights []model.CouplingWeights, y pair) pair {
	x := y
	for i := len(weights) - 1; i >= 0; i-- {
		x = inverseBlock(weights[i], x)
	}
	return x
}

// baseLogDensity is the standard-normal log-density of a 2-vector
//, the density the coupling stack's
// latent space is trained against.
func baseLogDensity(y pair) float64 {
	const logTwoPi = 1.8378770664093453
	return -0.5*logTwoPi - 0.5*y[0]*y[0] - 0.5*logTwoPi - 0.5*y[1]*y[1]
}
