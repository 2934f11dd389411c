package model

import (
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/dist"
)

// Reader implementors build a graph from a byte stream and name the arrays
// the model should be compiled around (none means every non-data array)
type Reader interface {
	ReadModel(data []byte) (*Graph, []*Array, error)
}

// Source provides uniform draws on [0, 1) for initial values
type Source interface {
	Float64() float64
}

// Model is a compiled graph: a fixed ordering of the free parameters and a
// differentiable log joint density over their unconstrained values. A Model
// never changes after Compile and is safe for concurrent use.
type Model struct {
	Name string

	graph   *Graph
	targets []*Array
	members map[*Array]bool
	order   []*Array // dependency order
	free    []freeParam
	dists   []boundDist
	dim     int
	names   []string
}

type freeParam struct {
	array  *Array
	offset int
	size   int
	tr     transform
}

// boundDist is a snapshot of a distribution's binding taken at compile time
type boundDist struct {
	dist       *Distribution
	family     dist.Family
	value      *Array
	params     []*Array
	truncLower *autodiff.Matrix
	truncUpper *autodiff.Matrix
}

// NewModelFromFile reads, builds and compiles a model. The model is named
// after the file.
func NewModelFromFile(r Reader, filename string) (*Model, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ model from %s", filename)
	}

	m, err := NewModelFromBuffer(r, data)
	if err != nil {
		return nil, err
	}

	var ext = filepath.Ext(filename)
	m.Name = filepath.Base(filename[0 : len(filename)-len(ext)])
	return m, nil
}

// NewModelFromBuffer builds and compiles a model from pre-read data
func NewModelFromBuffer(r Reader, data []byte) (*Model, error) {
	g, targets, err := r.ReadModel(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE model")
	}
	return Compile(g, targets...)
}

// Compile collects every array connected to the targets (through operands,
// distribution parameters and bound values), checks the result can be
// sampled and fixes the parameter layout. With no targets every non-data
// array in the graph is a target. Free variables without a distribution are
// allowed only as targets, where they get a flat prior.
func Compile(g *Graph, targets ...*Array) (*Model, error) {
	if g == nil {
		return nil, errors.Errorf("Nil graph")
	}
	if len(targets) < 1 {
		for _, a := range g.nodes {
			if a.kind != Data {
				targets = append(targets, a)
			}
		}
		if len(targets) < 1 {
			return nil, errors.Errorf("Graph has no variables or operations to model")
		}
	}
	targetSet := make(map[*Array]bool, len(targets))
	for _, t := range targets {
		if err := g.owns(t); err != nil {
			return nil, err
		}
		targetSet[t] = true
	}

	m := &Model{
		graph:   g,
		targets: append([]*Array(nil), targets...),
		members: connected(g, targets),
	}

	for _, a := range g.nodes {
		if !m.members[a] {
			continue
		}
		if a.kind == Variable && a.dist == nil && !targetSet[a] {
			return nil, errors.Wrapf(ErrUnboundVariable, "%s has no distribution and is not a target", a.Label())
		}
		if d := a.dist; d != nil && a.kind == Variable && d.family.Discrete() {
			return nil, errors.Wrapf(ErrDiscreteParameter, "%s follows discrete distribution %s", a.Label(), d.family)
		}
	}

	order, err := dependencyOrder(g, m.members)
	if err != nil {
		return nil, err
	}
	m.order = order

	for _, a := range m.order {
		if a.kind != Variable {
			continue
		}
		lower, upper := a.lower, a.upper
		if a.dist != nil {
			supLower, supUpper, err := a.dist.support()
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidBinding, "%s: %v", a.dist.Label(), err)
			}
			lower, upper = intersect(lower, upper, supLower, supUpper)
		}
		size := a.shape.Len()
		m.free = append(m.free, freeParam{
			array:  a,
			offset: m.dim,
			size:   size,
			tr:     newTransform(lower, upper),
		})
		m.dim += size
		m.names = append(m.names, elementNames(a)...)
	}

	for _, d := range g.dists {
		if d.value == nil || !m.members[d.value] {
			continue
		}
		m.dists = append(m.dists, boundDist{
			dist:       d,
			family:     d.family,
			value:      d.value,
			params:     append([]*Array(nil), d.params...),
			truncLower: d.truncLower,
			truncUpper: d.truncUpper,
		})
	}

	// a dry run surfaces errors that only appear while evaluating
	if _, err := m.evaluate(make([]float64, m.dim)); err != nil {
		return nil, err
	}
	return m, nil
}

// connected is the set of arrays reachable from the targets walking edges
// in both directions. Distributions that were never bound are ignored.
func connected(g *Graph, targets []*Array) map[*Array]bool {
	users := make(map[*Array][]*Array)
	for _, a := range g.nodes {
		if a.op != nil {
			for _, o := range a.op.Operands {
				users[o] = append(users[o], a)
			}
		}
	}
	paramOf := make(map[*Array][]*Distribution)
	for _, d := range g.dists {
		if d.value == nil {
			continue
		}
		for _, p := range d.params {
			paramOf[p] = append(paramOf[p], d)
		}
	}

	seen := make(map[*Array]bool)
	queue := append([]*Array(nil), targets...)
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if seen[a] {
			continue
		}
		seen[a] = true

		if a.op != nil {
			queue = append(queue, a.op.Operands...)
		}
		queue = append(queue, users[a]...)
		if a.dist != nil {
			queue = append(queue, a.dist.params...)
		}
		for _, d := range paramOf[a] {
			queue = append(queue, d.value)
		}
	}
	return seen
}

// dependencies of an array are its operands and, once bound, the parameters
// of its distribution
func dependencies(a *Array) []*Array {
	var deps []*Array
	if a.op != nil {
		deps = append(deps, a.op.Operands...)
	}
	if a.dist != nil {
		deps = append(deps, a.dist.params...)
	}
	return deps
}

// dependencyOrder is a depth first topological sort of the member arrays in
// creation order
func dependencyOrder(g *Graph, members map[*Array]bool) ([]*Array, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[*Array]int, len(members))
	order := make([]*Array, 0, len(members))

	var visit func(a *Array) error
	visit = func(a *Array) error {
		switch state[a] {
		case visited:
			return nil
		case visiting:
			return errors.Wrapf(ErrCyclicGraph, "%s depends on itself", a.Label())
		}
		state[a] = visiting
		for _, dep := range dependencies(a) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[a] = visited
		order = append(order, a)
		return nil
	}

	for _, a := range g.nodes {
		if members[a] {
			if err := visit(a); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// elementNames labels each element in column-major order, 1-based
func elementNames(a *Array) []string {
	label := a.Label()
	if a.shape.IsScalar() {
		return []string{label}
	}
	names := make([]string, 0, a.shape.Len())
	for j := 0; j < a.shape.Cols; j++ {
		for i := 0; i < a.shape.Rows; i++ {
			names = append(names, fmt.Sprintf("%s[%d,%d]", label, i+1, j+1))
		}
	}
	return names
}

// Dim is the number of free (unconstrained) parameters
func (m *Model) Dim() int {
	return m.dim
}

// ParamNames labels each free parameter in layout order
func (m *Model) ParamNames() []string {
	return append([]string(nil), m.names...)
}

// Targets returns the arrays the model was compiled around
func (m *Model) Targets() []*Array {
	return append([]*Array(nil), m.targets...)
}

// Variables returns the free variables in layout order
func (m *Model) Variables() []*Array {
	vars := make([]*Array, len(m.free))
	for i, fp := range m.free {
		vars[i] = fp.array
	}
	return vars
}

// Contains reports whether an array is part of the compiled model
func (m *Model) Contains(a *Array) bool {
	return m.members[a]
}

func (m *Model) checkLen(v []float64) error {
	if len(v) != m.dim {
		return errors.Errorf("Expected %d parameters, got %d", m.dim, len(v))
	}
	return nil
}

// Constrain maps an unconstrained vector onto the variables' natural scale
func (m *Model) Constrain(theta []float64) ([]float64, error) {
	if err := m.checkLen(theta); err != nil {
		return nil, err
	}
	x := make([]float64, m.dim)
	for _, fp := range m.free {
		fp.tr.constrain(theta[fp.offset:fp.offset+fp.size], x[fp.offset:fp.offset+fp.size])
	}
	return x, nil
}

// Unconstrain is the inverse of Constrain. Values must be strictly inside
// their variables' bounds.
func (m *Model) Unconstrain(x []float64) ([]float64, error) {
	if err := m.checkLen(x); err != nil {
		return nil, err
	}
	theta := make([]float64, m.dim)
	for _, fp := range m.free {
		if err := fp.tr.unconstrain(x[fp.offset:fp.offset+fp.size], theta[fp.offset:fp.offset+fp.size]); err != nil {
			return nil, errors.Wrapf(err, "Bad value for %s", fp.array.Label())
		}
	}
	return theta, nil
}

// InitialValues draws a starting point uniformly on (-2, 2) per
// unconstrained coordinate
func (m *Model) InitialValues(src Source) []float64 {
	theta := make([]float64, m.dim)
	for i := range theta {
		theta[i] = 4*src.Float64() - 2
	}
	return theta
}

type evaluation struct {
	tape   *autodiff.Tape
	values map[*Array]*autodiff.Node
	leaves []*autodiff.Node
	lp     *autodiff.Node
}

// evaluate records the whole model on a fresh tape
func (m *Model) evaluate(theta []float64) (*evaluation, error) {
	if err := m.checkLen(theta); err != nil {
		return nil, err
	}

	t := autodiff.NewTape()
	ev := &evaluation{
		tape:   t,
		values: make(map[*Array]*autodiff.Node, len(m.order)),
		leaves: make([]*autodiff.Node, len(m.free)),
	}

	lp := t.Scalar(0)
	for i, fp := range m.free {
		raw, err := autodiff.FromData(fp.array.shape.Rows, fp.array.shape.Cols,
			append([]float64(nil), theta[fp.offset:fp.offset+fp.size]...))
		if err != nil {
			return nil, err
		}
		ev.leaves[i] = t.Variable(raw)
		x, logJ := fp.tr.forward(t, ev.leaves[i])
		ev.values[fp.array] = x
		lp = t.Add(lp, logJ)
	}

	for _, a := range m.order {
		switch a.kind {
		case Data:
			ev.values[a] = t.Const(a.value)
		case Operation:
			in := make([]*autodiff.Node, len(a.op.Operands))
			for i, o := range a.op.Operands {
				in[i] = ev.values[o]
			}
			ev.values[a] = a.op.eval(t, in)
		}
	}

	for _, bd := range m.dists {
		params := make([]*autodiff.Node, len(bd.params))
		for i, p := range bd.params {
			params[i] = ev.values[p]
		}
		dens := bd.family.LogProb(t, ev.values[bd.value], params)
		if bd.truncLower != nil {
			logZ, err := bd.family.Truncate(t, params, bd.truncLower, bd.truncUpper)
			if err != nil {
				return nil, errors.Wrapf(ErrTruncation, "%s: %v", bd.dist.Label(), err)
			}
			dens = t.Sub(dens, logZ)
		}
		lp = t.Add(lp, t.Sum(dens))
	}

	ev.lp = lp
	return ev, nil
}

// LogDensity returns the log joint density (including the log Jacobians of
// the variable transforms) at an unconstrained point and its gradient. A
// non-finite density is returned as is, not as an error.
func (m *Model) LogDensity(theta []float64) (float64, []float64, error) {
	ev, err := m.evaluate(theta)
	if err != nil {
		return 0, nil, err
	}
	if err := ev.tape.Backward(ev.lp); err != nil {
		return 0, nil, err
	}

	grad := make([]float64, m.dim)
	for i, fp := range m.free {
		copy(grad[fp.offset:fp.offset+fp.size], ev.leaves[i].Grad().Data)
	}
	lp := ev.lp.Value.Data[0]
	if math.IsNaN(lp) {
		lp = math.Inf(-1)
	}
	return lp, grad, nil
}

// Calculate evaluates any array in the model given the variables' values on
// their natural scale (the layout of Constrain's result)
func (m *Model) Calculate(a *Array, x []float64) (*autodiff.Matrix, error) {
	if !m.members[a] {
		return nil, errors.Errorf("%s is not part of the model", a.Label())
	}
	theta, err := m.Unconstrain(x)
	if err != nil {
		return nil, err
	}
	ev, err := m.evaluate(theta)
	if err != nil {
		return nil, err
	}
	return ev.values[a].Value.Clone(), nil
}
