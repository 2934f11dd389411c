// Package dist is the catalogue of supported probability distributions.
//
// The set of families is closed: every Family is an index into a fixed
// registry, and each registry entry carries the same four rules (parameter
// shapes, support, log density, truncation). Log densities are written as
// autodiff tape operations so they are differentiable with respect to both
// the parameters and the value.
package dist

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/shape"
)

// ErrUnsupportedTruncation means a family has no closed-form truncated density
var ErrUnsupportedTruncation = errors.New("Truncation not supported")

// ErrUnknownFamily is returned by Lookup
var ErrUnknownFamily = errors.New("Unknown distribution")

// Family identifies one registry entry
type Family int

// Supported families
const (
	Normal Family = iota
	Lognormal
	Exponential
	Uniform
	Gamma
	Beta
	Student
	Cauchy
	Logistic
	Poisson
	Bernoulli
	Binomial

	familyCount
)

// LogProbFunc returns the elementwise log density of x given the parameters
type LogProbFunc func(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node

// TruncateFunc returns the elementwise log normalising constant of the
// family restricted to [lower, upper]
type TruncateFunc func(t *autodiff.Tape, p []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error)

type entry struct {
	name     string
	params   []string
	discrete bool
	lower    float64
	upper    float64
	logProb  LogProbFunc
	truncate TruncateFunc // nil when unsupported
}

var inf = math.Inf(1)

var registry = [familyCount]entry{
	Normal:      {"normal", []string{"mean", "sd"}, false, -inf, inf, normalLogProb, normalTruncate},
	Lognormal:   {"lognormal", []string{"meanlog", "sdlog"}, false, 0, inf, lognormalLogProb, lognormalTruncate},
	Exponential: {"exponential", []string{"rate"}, false, 0, inf, exponentialLogProb, exponentialTruncate},
	Uniform:     {"uniform", []string{"min", "max"}, false, math.NaN(), math.NaN(), uniformLogProb, nil},
	Gamma:       {"gamma", []string{"shape", "rate"}, false, 0, inf, gammaLogProb, nil},
	Beta:        {"beta", []string{"shape1", "shape2"}, false, 0, 1, betaLogProb, nil},
	Student:     {"student", []string{"df", "mu", "sigma"}, false, -inf, inf, studentLogProb, nil},
	Cauchy:      {"cauchy", []string{"location", "scale"}, false, -inf, inf, cauchyLogProb, cauchyTruncate},
	Logistic:    {"logistic", []string{"location", "scale"}, false, -inf, inf, logisticLogProb, logisticTruncate},
	Poisson:     {"poisson", []string{"lambda"}, true, 0, inf, poissonLogProb, nil},
	Bernoulli:   {"bernoulli", []string{"prob"}, true, 0, 1, bernoulliLogProb, nil},
	Binomial:    {"binomial", []string{"size", "prob"}, true, 0, math.NaN(), binomialLogProb, nil},
}

// Families lists every registered family in registry order
func Families() []Family {
	out := make([]Family, familyCount)
	for i := range out {
		out[i] = Family(i)
	}
	return out
}

// Lookup finds a family by (case-insensitive) name
func Lookup(name string) (Family, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, e := range registry {
		if e.name == name {
			return Family(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFamily, "No distribution named %q", name)
}

func (f Family) entry() *entry {
	if f < 0 || f >= familyCount {
		panic("dist: invalid family")
	}
	return &registry[f]
}

func (f Family) String() string {
	if f < 0 || f >= familyCount {
		return "unknown"
	}
	return registry[f].name
}

// Params are the parameter names in calling order
func (f Family) Params() []string {
	return append([]string(nil), f.entry().params...)
}

// Discrete families cannot be used for sampled parameters
func (f Family) Discrete() bool {
	return f.entry().discrete
}

// CanTruncate reports whether a truncated density exists for this family
func (f Family) CanTruncate() bool {
	return f.entry().truncate != nil
}

// Dim validates parameter shapes and returns the shape of the distribution.
// With no dims the result is the broadcast of the parameters; otherwise
// every parameter must broadcast up to the requested shape.
func (f Family) Dim(params []shape.Shape, dims ...int) (shape.Shape, error) {
	e := f.entry()
	if len(params) != len(e.params) {
		return shape.Shape{}, errors.Errorf("%s expects %d parameters (%s), got %d",
			e.name, len(e.params), strings.Join(e.params, ", "), len(params))
	}

	s, err := shape.BroadcastAll(params...)
	if err != nil {
		return shape.Shape{}, errors.Wrapf(err, "Incompatible %s parameters", e.name)
	}
	if len(dims) < 1 {
		return s, nil
	}

	want, err := shape.FromDims(dims...)
	if err != nil {
		return shape.Shape{}, err
	}
	got, err := shape.Broadcast(s, want)
	if err != nil || got != want {
		return shape.Shape{}, errors.Wrapf(shape.ErrShape, "%s parameters with shape %v cannot fill dim %v", e.name, s, want)
	}
	return want, nil
}

// Support returns elementwise bounds of the family's support broadcast to
// dim. fixed holds the parameter values that are known at construction time
// (nil for parameters that are computed); families whose support depends
// on a parameter need that parameter fixed.
func (f Family) Support(fixed []*autodiff.Matrix, dim shape.Shape) (lower, upper *autodiff.Matrix, err error) {
	e := f.entry()
	switch f {
	case Uniform:
		if len(fixed) != 2 || fixed[0] == nil || fixed[1] == nil {
			return nil, nil, errors.Errorf("uniform parameters must be fixed values")
		}
		lower, err = fixed[0].Broadcast(dim)
		if err != nil {
			return nil, nil, err
		}
		upper, err = fixed[1].Broadcast(dim)
		if err != nil {
			return nil, nil, err
		}
		for i := range lower.Data {
			if !(lower.Data[i] < upper.Data[i]) {
				return nil, nil, errors.Errorf("uniform min %v must be below max %v", lower.Data[i], upper.Data[i])
			}
		}
		return lower, upper, nil

	case Binomial:
		if len(fixed) != 2 || fixed[0] == nil {
			return nil, nil, errors.Errorf("binomial size must be a fixed value")
		}
		upper, err = fixed[0].Broadcast(dim)
		if err != nil {
			return nil, nil, err
		}
		return autodiff.Fill(dim.Rows, dim.Cols, 0), upper, nil
	}

	return autodiff.Fill(dim.Rows, dim.Cols, e.lower), autodiff.Fill(dim.Rows, dim.Cols, e.upper), nil
}

// CheckValue returns an error if an observed value lies outside the support,
// or is not a whole number for a discrete family.
func (f Family) CheckValue(x, lower, upper *autodiff.Matrix) error {
	e := f.entry()
	for i, v := range x.Data {
		lo, hi := lower.Data[i%len(lower.Data)], upper.Data[i%len(upper.Data)]
		if v < lo || v > hi {
			return errors.Errorf("Value %v outside the %s support [%v, %v]", v, e.name, lo, hi)
		}
		if e.discrete && v != math.Floor(v) {
			return errors.Errorf("Value %v is not a whole number for %s", v, e.name)
		}
	}
	return nil
}

// LogProb records the elementwise log density of x
func (f Family) LogProb(t *autodiff.Tape, x *autodiff.Node, params []*autodiff.Node) *autodiff.Node {
	lp := f.entry().logProb(t, x, params)
	if lp.Value.Rows != x.Value.Rows || lp.Value.Cols != x.Value.Cols {
		// a density that does not depend on x (uniform) still counts once per element
		lp = t.Add(lp, t.Const(autodiff.NewMatrix(x.Value.Rows, x.Value.Cols)))
	}
	return lp
}

// Truncate records the log normaliser of the family restricted to
// [lower, upper]. Each bound matrix must be entirely finite or entirely
// infinite; an infinite (or, for positive families, non-positive lower) side
// is treated as absent.
func (f Family) Truncate(t *autodiff.Tape, params []*autodiff.Node, lower, upper *autodiff.Matrix) (*autodiff.Node, error) {
	e := f.entry()
	if e.truncate == nil {
		return nil, errors.Wrapf(ErrUnsupportedTruncation, "No truncated form for %s", e.name)
	}
	return e.truncate(t, params, lower, upper)
}
