package garch

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"garchflow/internal/model"
)

// innovationShapeLen returns how many extra theta entries an
// innovation family appends after the variance parameters: 0 for
// normal, 1 (df) for student_t, 2 (df, skew) for skew_student_t.
func innovationShapeLen(inn model.InnovationFamily) int {
	switch inn {
	case model.Normal:
		return 0
	case model.StudentT:
		return 1
	case model.SkewStudentT:
		return 2
	default:
		return 0
	}
}

// InnovationShape holds the decoded shape parameters for a given
// innovation family; zero value is the normal case.
type InnovationShape struct {
	Nu float64 // Student-t degrees of freedom, nu = 2 + softplus(theta*)
	Xi float64 // Fernández-Steel skew parameter, xi = exp(theta*)
}

// DecodeInnovationShape reads the trailing entries of theta (after mu
// and the variance-family block) into an InnovationShape.
func DecodeInnovationShape(inn model.InnovationFamily, tail []float64) InnovationShape {
	switch inn {
	case model.StudentT:
		if len(tail) < 1 {
			return InnovationShape{Nu: 8}
		}
		return InnovationShape{Nu: 2 + softplus(tail[0])}
	case model.SkewStudentT:
		if len(tail) < 2 {
			return InnovationShape{Nu: 8, Xi: 1}
		}
		return InnovationShape{Nu: 2 + softplus(tail[0]), Xi: math.Exp(tail[1])}
	default:
		return InnovationShape{}
	}
}

// EncodeInnovationShape is ParamsToTheta's counterpart for the
// trailing innovation-shape entries.
func EncodeInnovationShape(inn model.InnovationFamily, shape InnovationShape) []float64 {
	switch inn {
	case model.StudentT:
		return []float64{invSoftplus(shape.Nu - 2)}
	case model.SkewStudentT:
		return []float64{invSoftplus(shape.Nu - 2), math.Log(shape.Xi)}
	default:
		return nil
	}
}

// LogDensity evaluates one observation's log-density contribution
// given standardized innovation z=eps/sqrt(h) and the timestep's
// variance h, under whichever of the three supported innovation laws
// inn selects.
func LogDensity(inn model.InnovationFamily, shape InnovationShape, z, h float64) float64 {
	switch inn {
	case model.Normal:
		return -0.5*(math.Log(2*math.Pi)+math.Log(h)) - 0.5*z*z

	case model.StudentT:
		nu := shape.Nu
		logGammaRatio := lgamma((nu+1)/2) - lgamma(nu/2)
		return logGammaRatio - 0.5*math.Log(math.Pi*nu) - 0.5*math.Log(h) -
			(nu+1)/2*math.Log1p(z*z/nu)

	case model.SkewStudentT:
		return skewStudentTLogDensity(shape.Nu, shape.Xi, z) - 0.5*math.Log(h)

	default:
		return math.NaN()
	}
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// skewStudentTLogDensity implements the Fernández-Steel (1998) skew
// extension of the Student-t density, standardized so that the
// resulting z has mean 0 and variance 1, implemented end-to-end rather
// than aliased to the symmetric case.
//
// The construction: let g(x) be the symmetric (mean-0, unit-variance)
// Student-t density with df=nu. The skewed density is
//
//	f(x) = 2/(xi+1/xi) * g(x/xi)      if x >= 0
//	     = 2/(xi+1/xi) * g(x*xi)      if x <  0
//
// which is then re-centered/re-scaled (location m, scale s, both
// closed-form in xi and nu) so that the *standardized* input z already
// has the target mean 0 / variance 1, matching the other two
// innovation laws' contract.
func skewStudentTLogDensity(nu, xi, z float64) float64 {
	if xi <= 0 {
		xi = 1
	}
	m, s := skewStudentTMomentAdjust(nu, xi)
	x := m + s*z // undo the standardization to reach the Fernandez-Steel variable

	var sign float64 = 1
	if x < 0 {
		sign = -1
	}
	xiPow := math.Pow(xi, sign)

	// g is the unit-variance Student-t: rescale the unit-scale density.
	sd := 1.0
	if nu > 2 {
		sd = math.Sqrt(nu / (nu - 2))
	}
	tDensityLog := studentTLogDensitySymmetric(nu, x/xiPow*sd) + math.Log(sd)
	logC := math.Log(2) - math.Log(xi+1/xi)

	// Jacobian: d(x)/d(z) = s, and x = m+s*z, so log f_Z(z) =
	// log f_X(x) + log(s).
	return logC + tDensityLog + math.Log(s)
}

// studentTLogDensitySymmetric is the plain (mean 0, scale 1, df=nu)
// Student-t log-density, i.e. the Student-t branch of LogDensity with
// h=1.
func studentTLogDensitySymmetric(nu, x float64) float64 {
	logGammaRatio := lgamma((nu+1)/2) - lgamma(nu/2)
	return logGammaRatio - 0.5*math.Log(math.Pi*nu) - (nu+1)/2*math.Log1p(x*x/nu)
}

// skewStudentTMomentAdjust returns the (location, scale) pair that
// re-centers/re-scales the Fernandez-Steel variable to mean 0, var 1,
// following the standard closed-form moments of the skew-t.
func skewStudentTMomentAdjust(nu, xi float64) (m, s float64) {
	if nu <= 2 {
		nu = 2.01
	}
	mu1 := 2 * math.Sqrt(nu-2) / (math.Sqrt(math.Pi) * nu) * math.Exp(lgamma((nu+1)/2)-lgamma(nu/2)) * (nu / (nu - 1))
	// Standard Fernandez-Steel mean correction term.
	ev := mu1 * (xi - 1/xi)
	ev2 := (xi*xi + 1/(xi*xi) - 1) // variance scaling constant before the mean-squared correction
	variance := ev2 - ev*ev
	if variance <= 0 {
		variance = 1e-6
	}
	s = 1 / math.Sqrt(variance)
	m = -ev * s
	return m, s
}

// NormalQuantile returns the standard-normal alpha-quantile, used by
// VaR computations that need a parametric fallback quantile.
func NormalQuantile(alpha float64) float64 {
	return distuv.UnitNormal.Quantile(alpha)
}

// StudentTQuantile returns the standardized (mean 0, var 1) Student-t
// alpha-quantile for the given degrees of freedom.
func StudentTQuantile(nu, alpha float64) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}
	raw := t.Quantile(alpha)
	if nu > 2 {
		raw /= math.Sqrt(nu / (nu - 2))
	}
	return raw
}

// FitInnovationShape decodes a fit's innovation shape parameters from
// the trailing entries of fit.Theta, without the caller needing to
// re-derive the variance-family offset.
func FitInnovationShape(fit *model.GarchFit) InnovationShape {
	n := innovationShapeLen(fit.Spec.Innovation)
	if n == 0 || len(fit.Theta) < n {
		return InnovationShape{}
	}
	return DecodeInnovationShape(fit.Spec.Innovation, fit.Theta[len(fit.Theta)-n:])
}

// InnovationQuantile returns the fitted innovation law's alpha-quantile
// of the standardized shock, used as the parametric fallback for a VaR
// level when no normalizing-flow sample is available. The skew-Student-t
// quantile is approximated by its symmetric Student-t counterpart at
// the same degrees of freedom, since inverting the standardized
// Fernandez-Steel CDF in closed form is not worth the complexity here.
func InnovationQuantile(fit *model.GarchFit, alpha float64) float64 {
	switch fit.Spec.Innovation {
	case model.StudentT, model.SkewStudentT:
		shape := FitInnovationShape(fit)
		return StudentTQuantile(shape.Nu, alpha)
	default:
		return NormalQuantile(alpha)
	}
}
