package model

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/dist"
	"github.com/CraigKelly/greta/shape"
)

// Distribution is a probability distribution node. It owns its parameter
// arrays and is bound to at most one value array, either a fresh variable
// (NewVariable) or an existing data or variable array (SetDistribution).
type Distribution struct {
	id     int
	graph  *Graph
	family dist.Family
	params []*Array
	dim    shape.Shape
	value  *Array

	// truncation bounds, nil unless the bound variable narrows the support
	truncLower *autodiff.Matrix
	truncUpper *autodiff.Matrix
}

// ID is unique within the owning graph
func (d *Distribution) ID() int {
	return d.id
}

// Family of the distribution
func (d *Distribution) Family() dist.Family {
	return d.family
}

// Params returns the parameter arrays in family order
func (d *Distribution) Params() []*Array {
	return append([]*Array(nil), d.params...)
}

// Dim is the shape of values drawn from the distribution
func (d *Distribution) Dim() shape.Shape {
	return d.dim
}

// Value is the bound array, or nil if the distribution is unbound
func (d *Distribution) Value() *Array {
	return d.value
}

// Truncated reports whether the density is renormalised to narrower bounds
func (d *Distribution) Truncated() bool {
	return d.truncLower != nil
}

// Label names the distribution for display
func (d *Distribution) Label() string {
	return fmt.Sprintf("%s_%d", d.family, d.id)
}

func (d *Distribution) String() string {
	return fmt.Sprintf("%s (%v)", d.Label(), d.dim)
}

// NewDistribution creates a distribution node. params may be arrays or
// numbers and must match the family's parameter list. With no dims the
// distribution takes the broadcast shape of its parameters; otherwise each
// parameter must broadcast up to dims.
func (g *Graph) NewDistribution(f dist.Family, params []interface{}, dims ...int) (*Distribution, error) {
	ps, err := g.operands(params...)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad %s parameter", f)
	}
	shapes := make([]shape.Shape, len(ps))
	for i, p := range ps {
		shapes[i] = p.shape
	}
	s, err := f.Dim(shapes, dims...)
	if err != nil {
		return nil, err
	}

	d := &Distribution{
		graph:  g,
		family: f,
		params: ps,
		dim:    s,
	}

	// families with parameter dependent support are checked up front
	if f == dist.Uniform || f == dist.Binomial {
		if _, _, err := d.support(); err != nil {
			return nil, errors.Wrapf(err, "Bad %s distribution", f)
		}
	}

	g.commit(ps)
	d.id = g.id()
	g.dists = append(g.dists, d)
	return d, nil
}

// Normal distribution with mean and sd
func (g *Graph) Normal(mean, sd interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Normal, []interface{}{mean, sd}, dims...)
}

// Lognormal distribution with meanlog and sdlog
func (g *Graph) Lognormal(meanlog, sdlog interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Lognormal, []interface{}{meanlog, sdlog}, dims...)
}

// Exponential distribution with rate
func (g *Graph) Exponential(rate interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Exponential, []interface{}{rate}, dims...)
}

// Uniform distribution between fixed min and max
func (g *Graph) Uniform(min, max interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Uniform, []interface{}{min, max}, dims...)
}

// Gamma distribution with shape and rate
func (g *Graph) Gamma(k, rate interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Gamma, []interface{}{k, rate}, dims...)
}

// Beta distribution with two shape parameters
func (g *Graph) Beta(a, b interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Beta, []interface{}{a, b}, dims...)
}

// Student t distribution with df, location and scale
func (g *Graph) Student(df, mu, sigma interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Student, []interface{}{df, mu, sigma}, dims...)
}

// Cauchy distribution with location and scale
func (g *Graph) Cauchy(location, scale interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Cauchy, []interface{}{location, scale}, dims...)
}

// Logistic distribution with location and scale
func (g *Graph) Logistic(location, scale interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Logistic, []interface{}{location, scale}, dims...)
}

// Poisson distribution with rate lambda
func (g *Graph) Poisson(lambda interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Poisson, []interface{}{lambda}, dims...)
}

// Bernoulli distribution with success probability
func (g *Graph) Bernoulli(prob interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Bernoulli, []interface{}{prob}, dims...)
}

// Binomial distribution with fixed size and success probability
func (g *Graph) Binomial(size, prob interface{}, dims ...int) (*Distribution, error) {
	return g.NewDistribution(dist.Binomial, []interface{}{size, prob}, dims...)
}

// support of the distribution at its dim, using data parameters where the
// family needs them
func (d *Distribution) support() (lower, upper *autodiff.Matrix, err error) {
	fixed := make([]*autodiff.Matrix, len(d.params))
	for i, p := range d.params {
		if p.kind == Data {
			fixed[i] = p.value
		}
	}
	return d.family.Support(fixed, d.dim)
}

// NewVariable creates a variable constrained to the distribution's support
// and binds the distribution to it
func (d *Distribution) NewVariable() (*Array, error) {
	if d.value != nil {
		return nil, errors.Wrapf(ErrInvalidBinding, "%s is already bound to %s", d.Label(), d.value.Label())
	}
	lower, upper, err := d.support()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidBinding, "%s: %v", d.Label(), err)
	}
	v := d.graph.newVariable(lower, upper, d.dim)
	d.value = v
	v.dist = d
	return v, nil
}

// SetDistribution binds d to an existing data or variable array. Binding
// data checks the values against the support. Binding a variable whose
// bounds are narrower than the support truncates the distribution, which
// only some families allow.
func (g *Graph) SetDistribution(target *Array, d *Distribution) error {
	if err := g.owns(target); err != nil {
		return err
	}
	if d == nil || d.graph != g {
		return errors.Wrapf(ErrInvalidBinding, "Distribution belongs to a different graph")
	}
	if target.dist != nil {
		return errors.Wrapf(ErrDuplicateDistribution, "%s already has distribution %s", target.Label(), target.dist.Label())
	}
	if d.value != nil {
		return errors.Wrapf(ErrInvalidBinding, "%s is already bound to %s", d.Label(), d.value.Label())
	}
	if target.kind == Operation {
		return errors.Wrapf(ErrInvalidBinding, "Cannot bind %s to operation %s", d.Label(), target.Label())
	}
	if target.shape != d.dim {
		return errors.Wrapf(ErrShape, "%s has dim %v but %s is %v", d.Label(), d.dim, target.Label(), target.shape)
	}

	lower, upper, err := d.support()
	if err != nil {
		return errors.Wrapf(ErrInvalidBinding, "%s: %v", d.Label(), err)
	}

	var truncLower, truncUpper *autodiff.Matrix
	switch target.kind {
	case Data:
		if err := d.family.CheckValue(target.value, lower, upper); err != nil {
			return errors.Wrapf(ErrDataValidation, "%s: %v", target.Label(), err)
		}

	case Variable:
		if narrower(target.lower, lower, func(a, b float64) bool { return a > b }) ||
			narrower(target.upper, upper, func(a, b float64) bool { return a < b }) {
			if !d.family.CanTruncate() {
				return errors.Wrapf(ErrTruncation, "Bounds of %s would truncate %s, which is not supported", target.Label(), d.family)
			}
			truncLower, truncUpper = target.lower.Clone(), target.upper.Clone()
		}
		lo, hi := intersect(target.lower, target.upper, lower, upper)
		for i := range lo.Data {
			if !(lo.Data[i] < hi.Data[i]) {
				return errors.Wrapf(ErrInvalidBinding, "Bounds of %s do not overlap the %s support", target.Label(), d.family)
			}
		}
	}

	d.value = target
	d.truncLower, d.truncUpper = truncLower, truncUpper
	target.dist = d
	return nil
}

// narrower is true if any bound element is strictly inside the support
func narrower(bound, support *autodiff.Matrix, inside func(a, b float64) bool) bool {
	for i := range bound.Data {
		if inside(bound.Data[i], support.Data[i]) {
			return true
		}
	}
	return false
}

// intersect returns the elementwise tightest bounds
func intersect(lower, upper, supLower, supUpper *autodiff.Matrix) (*autodiff.Matrix, *autodiff.Matrix) {
	lo, hi := lower.Clone(), upper.Clone()
	for i := range lo.Data {
		lo.Data[i] = math.Max(lo.Data[i], supLower.Data[i])
		hi.Data[i] = math.Min(hi.Data[i], supUpper.Data[i])
	}
	return lo, hi
}
