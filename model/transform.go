package model

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
)

type transformKind int

const (
	identityTransform transformKind = iota
	lowerTransform
	upperTransform
	intervalTransform
)

func (k transformKind) String() string {
	switch k {
	case lowerTransform:
		return "lower"
	case upperTransform:
		return "upper"
	case intervalTransform:
		return "interval"
	}
	return "none"
}

// transform maps an unconstrained vector onto a variable's bounds
//
//	none:     x = theta
//	lower:    x = a + exp(theta)
//	upper:    x = b - exp(theta)
//	interval: x = a + (b - a) * ilogit(theta)
type transform struct {
	kind  transformKind
	lower *autodiff.Matrix
	upper *autodiff.Matrix
	width *autodiff.Matrix // upper - lower for intervals
}

// newTransform picks the transform for bounds that are each all finite or
// all infinite
func newTransform(lower, upper *autodiff.Matrix) transform {
	lo := !math.IsInf(lower.Data[0], 0)
	hi := !math.IsInf(upper.Data[0], 0)
	tr := transform{lower: lower, upper: upper}
	switch {
	case lo && hi:
		tr.kind = intervalTransform
		tr.width = upper.Clone()
		for i := range tr.width.Data {
			tr.width.Data[i] -= lower.Data[i]
		}
	case lo:
		tr.kind = lowerTransform
	case hi:
		tr.kind = upperTransform
	default:
		tr.kind = identityTransform
	}
	return tr
}

// forward records x and the scalar log absolute Jacobian of the map
func (tr transform) forward(t *autodiff.Tape, theta *autodiff.Node) (x, logJ *autodiff.Node) {
	switch tr.kind {
	case lowerTransform:
		return t.Add(t.Const(tr.lower), t.Exp(theta)), t.Sum(theta)
	case upperTransform:
		return t.Sub(t.Const(tr.upper), t.Exp(theta)), t.Sum(theta)
	case intervalTransform:
		x = t.Add(t.Const(tr.lower), t.Mul(t.Const(tr.width), t.Ilogit(theta)))
		// log(b - a) + log ilogit(theta) + log ilogit(-theta)
		logJ = t.Neg(t.Add(t.Log1pExp(theta), t.Log1pExp(t.Neg(theta))))
		logJ = t.Add(t.Sum(logJ), t.Scalar(sumLog(tr.width)))
		return x, logJ
	}
	return theta, t.Scalar(0)
}

func sumLog(m *autodiff.Matrix) float64 {
	var s float64
	for _, v := range m.Data {
		s += math.Log(v)
	}
	return s
}

// constrain applies the forward map to plain values
func (tr transform) constrain(theta []float64, x []float64) {
	for i, v := range theta {
		switch tr.kind {
		case lowerTransform:
			x[i] = tr.lower.Data[i] + math.Exp(v)
		case upperTransform:
			x[i] = tr.upper.Data[i] - math.Exp(v)
		case intervalTransform:
			x[i] = tr.lower.Data[i] + tr.width.Data[i]*autodiff.Ilogit(v)
		default:
			x[i] = v
		}
	}
}

// unconstrain inverts the map; x must lie strictly inside the bounds
func (tr transform) unconstrain(x []float64, theta []float64) error {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("Non-finite value %v", v)
		}
		switch tr.kind {
		case lowerTransform:
			if !(v > tr.lower.Data[i]) {
				return errors.Errorf("Value %v is not above lower bound %v", v, tr.lower.Data[i])
			}
			theta[i] = math.Log(v - tr.lower.Data[i])
		case upperTransform:
			if !(v < tr.upper.Data[i]) {
				return errors.Errorf("Value %v is not below upper bound %v", v, tr.upper.Data[i])
			}
			theta[i] = math.Log(tr.upper.Data[i] - v)
		case intervalTransform:
			if !(v > tr.lower.Data[i] && v < tr.upper.Data[i]) {
				return errors.Errorf("Value %v is not inside (%v, %v)", v, tr.lower.Data[i], tr.upper.Data[i])
			}
			theta[i] = autodiff.Logit((v - tr.lower.Data[i]) / tr.width.Data[i])
		default:
			theta[i] = v
		}
	}
	return nil
}
