// Package model holds the shared domain types that flow between the
// returns preparer, the GARCH engine, the normalizing-flow subsystem,
// the NF-GARCH simulator and the evaluator. None of these
// types carry behavior beyond small accessors; estimation, simulation
// and evaluation logic lives in the owning package.
package model

import (
	"crypto/sha1"
	"fmt"

	"github.com/google/uuid"
)

// VarianceFamily is the GARCH recursion family.
type VarianceFamily int

const (
	SGARCH VarianceFamily = iota
	EGARCH
	GJRGARCH
	TGARCH
)

func (f VarianceFamily) String() string {
	switch f {
	case SGARCH:
		return "sGARCH"
	case EGARCH:
		return "eGARCH"
	case GJRGARCH:
		return "gjrGARCH"
	case TGARCH:
		return "TGARCH"
	default:
		return "unknown"
	}
}

// InnovationFamily is the conditional-density assumption.
type InnovationFamily int

const (
	Normal InnovationFamily = iota
	StudentT
	SkewStudentT
)

func (f InnovationFamily) String() string {
	switch f {
	case Normal:
		return "normal"
	case StudentT:
		return "student_t"
	case SkewStudentT:
		return "skew_student_t"
	default:
		return "unknown"
	}
}

// ModelSpec is a value object: orders are fixed at p=1,q=1.
type ModelSpec struct {
	Variance   VarianceFamily
	Innovation InnovationFamily

	// EstimateThreshold selects TGARCH's threshold-tau handling: false
	// (default) fixes tau=0, true estimates it as a free parameter.
	// Ignored by families other than TGARCH.
	EstimateThreshold bool
}

// Hash is a short content-addressed fingerprint of the model
// configuration, used to build FitID/SampleID identifiers.
func (s ModelSpec) Hash() string {
	return fmt.Sprintf("%d-%d-%v", s.Variance, s.Innovation, s.EstimateThreshold)
}

// ReturnSeries is an immutable, ordered per-asset log-return series
//. Frequency is one observation per business day.
type ReturnSeries struct {
	AssetID string
	Time    []float64 // business-day index, 0,1,2,...
	R       []float64 // log returns
}

func (rs ReturnSeries) Len() int { return len(rs.R) }

// DataChecksum is a lightweight content fingerprint of the series used
// by FitID, not a cryptographic integrity guarantee.
func (rs ReturnSeries) DataChecksum() string {
	h := sha1.New()
	for _, v := range rs.R {
		fmt.Fprintf(h, "%x", v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// FitID is a content-addressed identifier: a hash of (model spec, asset
// id, data checksum). Deterministic, not random, so a re-run with
// identical inputs reproduces the same id.
func FitID(assetID string, spec ModelSpec, dataChecksum string) uuid.UUID {
	name := assetID + "|" + spec.Hash() + "|" + dataChecksum
	return uuid.NewSHA1(uuid.Nil, []byte(name))
}

// FlowID is FitID's counterpart for a trained NFModel: content-addressed
// on its source fit and final loss, so a deterministic re-train of the
// same fit reproduces the same id.
func FlowID(sourceFit uuid.UUID, lossHistory []float64) uuid.UUID {
	final := 0.0
	if n := len(lossHistory); n > 0 {
		final = lossHistory[n-1]
	}
	name := fmt.Sprintf("%s|%x", sourceFit.String(), final)
	return uuid.NewSHA1(uuid.Nil, []byte(name))
}

// GarchFit is the immutable result of fitting a ModelSpec to a
// ReturnSeries. Owns its parameter and path arrays exclusively.
type GarchFit struct {
	ID      uuid.UUID
	AssetID string
	Spec    ModelSpec

	Mu    float64   // conditional mean
	Theta []float64 // raw unconstrained optimizer vector (diagnostics only)

	H   []float64 // conditional variance path h[1..T]
	Eps []float64 // raw residuals eps[1..T] = r[t]-mu
	Z   []float64 // standardized residuals z[1..T] = eps[t]/sqrt(h[t])

	LogLik float64
	AIC    float64
	BIC    float64
	K      int // number of free parameters, including innovation shape

	Converged bool

	// Cov is the asymptotic parameter covariance; nil if not computed.
	Cov [][]float64
}

// NFModel is the immutable result of training a normalizing flow on a
// GarchFit's standardized residuals.
type NFModel struct {
	ID        uuid.UUID
	SourceFit uuid.UUID // the GarchFit whose Z this was trained on

	Blocks int
	Width  int

	Weights []CouplingWeights
	LossHistory []float64

	Diverged bool
}

// CouplingWeights are the learned parameters of one affine-coupling
// block (internal/flow).
type CouplingWeights struct {
	W1, B1 []float64 // hidden layer
	W2, B2 []float64 // output layer (log-scale, shift)
	Parity int       // 0 or 1: which half of the 2-vector is transformed
}

// InnovationSample is a transient sequence of NF draws.
type InnovationSample struct {
	NFModelID uuid.UUID
	Seed      int64
	Z         []float64
}

// SimPath is a transient simulated return path. Borrows
// references to its inputs by id but copies its own output arrays.
type SimPath struct {
	GarchFitID  uuid.UUID
	SampleID    uuid.UUID
	H           []float64
	R           []float64
}

// EvalReport serializes out the evaluator's metrics for one
// (asset, spec, split) job.
type EvalReport struct {
	AssetID string
	Spec    ModelSpec
	SplitID string

	AIC, BIC, LogLik float64
	MSE, MAE         float64

	LjungBoxZ   TestResult
	LjungBoxZ2  TestResult
	ArchLM      TestResult

	VaR []VaRBacktestResult

	KSStat, KSPValue       float64
	Wasserstein            float64

	Stylized StylizedFacts
}

// TestResult is a generic (statistic, p-value) pair.
type TestResult struct {
	Statistic float64
	PValue    float64
}

// VaRBacktestResult is one tail-level's VaR backtest outcome.
type VaRBacktestResult struct {
	Alpha           float64
	TotalObs        int
	Violations      int
	ViolationRate   float64
	Kupiec          TestResult
	Christoffersen  TestResult
	DynamicQuantile TestResult
}

// StylizedFacts holds the distributional "stylized fact" metrics
// computed over a return series.
type StylizedFacts struct {
	Mean, Variance, Skewness, ExcessKurtosis float64
	ACFReturns, ACFAbs, ACFSquared           []float64
	TailIndex                                float64
}
