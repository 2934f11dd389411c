package dist

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
)

// Truncation is supported where the CDF has a closed form that we can
// differentiate through: normal, lognormal, exponential, cauchy and
// logistic. Gamma, beta and student would need incomplete gamma/beta
// function gradients, uniform is already bounded, and discrete families are
// never sampled, so they all report ErrUnsupportedTruncation.

// boundSide reports whether a bound is in effect. absent says when a single
// element does not restrict the support.
func boundSide(m *autodiff.Matrix, absent func(v float64) bool) (bool, error) {
	if m == nil {
		return false, nil
	}
	count := 0
	for _, v := range m.Data {
		if absent(v) {
			count++
		}
	}
	switch count {
	case 0:
		return true, nil
	case len(m.Data):
		return false, nil
	}
	return false, errors.Errorf("Truncation bound mixes finite and unbounded elements")
}

func isNegInf(v float64) bool { return math.IsInf(v, -1) }
func isPosInf(v float64) bool { return math.IsInf(v, 1) }
func nonPositive(v float64) bool { return v <= 0 }

func bothSides(lower, upper *autodiff.Matrix, lowerAbsent func(float64) bool) (bool, bool, error) {
	lo, err := boundSide(lower, lowerAbsent)
	if err != nil {
		return false, false, err
	}
	hi, err := boundSide(upper, isPosInf)
	if err != nil {
		return false, false, err
	}
	if !lo && !hi {
		return false, false, errors.Errorf("Truncation requested without a finite bound")
	}
	return lo, hi, nil
}

// normalLogZ is log(Phi(zb) - Phi(za)) for (bound - mean) / sd, with
// absent sides as infinite constants so no gradient flows through them
func normalLogZ(t *autodiff.Tape, mean, sd *autodiff.Node, lower, upper *autodiff.Matrix, lo, hi bool) *autodiff.Node {
	za := t.Scalar(math.Inf(-1))
	if lo {
		za = standardise(t, t.Const(lower), mean, sd)
	}
	zb := t.Scalar(math.Inf(1))
	if hi {
		zb = standardise(t, t.Const(upper), mean, sd)
	}
	return t.NormalLogCDFDiff(za, zb)
}

func normalTruncate(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	lo, hi, err := bothSides(lower, upper, isNegInf)
	if err != nil {
		return nil, err
	}
	return normalLogZ(t, p[0], p[1], lower, upper, lo, hi), nil
}

func logMatrix(m *autodiff.Matrix) *autodiff.Matrix {
	if m == nil {
		return nil
	}
	out := m.Clone()
	for i, v := range out.Data {
		out.Data[i] = math.Log(v)
	}
	return out
}

func lognormalTruncate(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	lo, hi, err := bothSides(lower, upper, nonPositive)
	if err != nil {
		return nil, err
	}
	return normalLogZ(t, p[0], p[1], logMatrix(lower), logMatrix(upper), lo, hi), nil
}

func exponentialTruncate(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	lo, hi, err := bothSides(lower, upper, nonPositive)
	if err != nil {
		return nil, err
	}
	rate := p[0]

	// Z = exp(-rate*a) - exp(-rate*b) = exp(-rate*a) * (1 - exp(-rate*(b-a)))
	a := autodiff.ScalarMatrix(0)
	if lo {
		a = lower
	}
	logZ := t.Neg(t.Mul(rate, t.Const(a)))
	if hi {
		width := upper.Clone()
		for i := range width.Data {
			width.Data[i] -= a.Data[i%len(a.Data)]
		}
		logZ = t.Add(logZ, t.Log1mExp(t.Neg(t.Mul(rate, t.Const(width)))))
	}
	return logZ, nil
}

func cauchyTruncate(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	lo, hi, err := bothSides(lower, upper, isNegInf)
	if err != nil {
		return nil, err
	}

	// F(x) = 1/2 + atan(z)/pi
	fa := t.Scalar(-math.Pi / 2)
	if lo {
		fa = t.Atan(standardise(t, t.Const(lower), p[0], p[1]))
	}
	fb := t.Scalar(math.Pi / 2)
	if hi {
		fb = t.Atan(standardise(t, t.Const(upper), p[0], p[1]))
	}
	return t.Shift(t.Log(t.Sub(fb, fa)), -math.Log(math.Pi)), nil
}

func logisticTruncate(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	lo, hi, err := bothSides(lower, upper, isNegInf)
	if err != nil {
		return nil, err
	}

	fa := t.Scalar(0)
	if lo {
		fa = t.Ilogit(standardise(t, t.Const(lower), p[0], p[1]))
	}
	fb := t.Scalar(1)
	if hi {
		fb = t.Ilogit(standardise(t, t.Const(upper), p[0], p[1]))
	}
	return t.Log(t.Sub(fb, fa)), nil
}
