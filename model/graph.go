package model

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/shape"
)

// Graph is the construction-time registry for one model. Every array and
// distribution is created through a Graph handle, so independent graphs can
// coexist without sharing state. A Graph is not safe for concurrent use.
type Graph struct {
	nodes  []*Array
	dists  []*Distribution
	names  map[string]*Array
	nextID int
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{
		names: make(map[string]*Array),
	}
}

// Nodes returns every array in creation order
func (g *Graph) Nodes() []*Array {
	return append([]*Array(nil), g.nodes...)
}

// Distributions returns every distribution in creation order
func (g *Graph) Distributions() []*Distribution {
	return append([]*Distribution(nil), g.dists...)
}

func (g *Graph) id() int {
	id := g.nextID
	g.nextID++
	return id
}

func (g *Graph) add(a *Array) *Array {
	a.id = g.id()
	a.graph = g
	g.nodes = append(g.nodes, a)
	return a
}

// Assign gives an array a user-facing name. Both assignment forms of the
// modelling language end up here. The first name an array receives becomes
// its display label; later names are aliases. Re-using a name points it at
// the new array.
func (g *Graph) Assign(name string, a *Array) (*Array, error) {
	if err := g.owns(a); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.Errorf("Cannot assign an empty name")
	}
	if a.name == "" {
		a.name = name
	}
	g.names[name] = a
	return a, nil
}

// Lookup finds an array by a name given to Assign
func (g *Graph) Lookup(name string) (*Array, bool) {
	a, ok := g.names[name]
	return a, ok
}

func (g *Graph) owns(a *Array) error {
	if a == nil {
		return errors.Errorf("Nil array")
	}
	if a.graph != g {
		return errors.Errorf("Array %s belongs to a different graph", a.Label())
	}
	return nil
}

// toMatrix converts the numeric types accepted by the API. Scalars become
// 1x1, a []float64 becomes a column vector and [][]float64 is read by rows.
func toMatrix(v interface{}) (*autodiff.Matrix, error) {
	switch x := v.(type) {
	case float64:
		return autodiff.ScalarMatrix(x), nil
	case int:
		return autodiff.ScalarMatrix(float64(x)), nil
	case []float64:
		if len(x) < 1 {
			return nil, errors.Wrapf(ErrDataValidation, "Empty vector")
		}
		return autodiff.Column(x), nil
	case []int:
		if len(x) < 1 {
			return nil, errors.Wrapf(ErrDataValidation, "Empty vector")
		}
		m := autodiff.NewMatrix(len(x), 1)
		for i, xi := range x {
			m.Data[i] = float64(xi)
		}
		return m, nil
	case [][]float64:
		m, err := autodiff.FromRows(x)
		if err != nil {
			return nil, errors.Wrapf(ErrDataValidation, "%v", err)
		}
		return m, nil
	case *autodiff.Matrix:
		if x == nil || x.Rows < 1 || x.Cols < 1 || len(x.Data) != x.Rows*x.Cols {
			return nil, errors.Wrapf(ErrDataValidation, "Malformed matrix")
		}
		return x.Clone(), nil
	}
	return nil, errors.Wrapf(ErrDataValidation, "Unsupported value type %T", v)
}

// Data creates a data array from fixed values. Missing (NaN) and infinite
// values are rejected.
func (g *Graph) Data(v interface{}) (*Array, error) {
	a, err := g.detachedData(v)
	if err != nil {
		return nil, err
	}
	return g.add(a), nil
}

// detachedData validates a data value without registering it, so a failed
// construction leaves the graph as it was
func (g *Graph) detachedData(v interface{}) (*Array, error) {
	m, err := toMatrix(v)
	if err != nil {
		return nil, err
	}
	for i, x := range m.Data {
		if math.IsNaN(x) {
			return nil, errors.Wrapf(ErrDataValidation, "Missing value at element %d", i)
		}
		if math.IsInf(x, 0) {
			return nil, errors.Wrapf(ErrDataValidation, "Non-finite value %v at element %d", x, i)
		}
	}

	return &Array{
		id:    -1,
		graph: g,
		shape: m.Shape(),
		kind:  Data,
		value: m,
	}, nil
}

// asArray passes arrays from this graph through and wraps numbers as
// detached data; commit registers the detached ones once the caller's node
// is known to be valid
func (g *Graph) asArray(v interface{}) (*Array, error) {
	if a, ok := v.(*Array); ok {
		if err := g.owns(a); err != nil {
			return nil, err
		}
		return a, nil
	}
	return g.detachedData(v)
}

func (g *Graph) commit(arrays []*Array) {
	for _, a := range arrays {
		if a.id < 0 {
			g.add(a)
		}
	}
}

// Variable creates a free variable. lower and upper may be numbers or arrays
// of numbers broadcast to the variable's dim; use math.Inf for no bound.
// Each bound must be entirely finite or entirely infinite.
func (g *Graph) Variable(lower, upper interface{}, dims ...int) (*Array, error) {
	s, err := shape.FromDims(dims...)
	if err != nil {
		return nil, err
	}
	lo, err := boundMatrix(lower, s, math.Inf(-1))
	if err != nil {
		return nil, errors.Wrapf(err, "Bad lower bound")
	}
	hi, err := boundMatrix(upper, s, math.Inf(1))
	if err != nil {
		return nil, errors.Wrapf(err, "Bad upper bound")
	}
	if err := checkBounds(lo, hi); err != nil {
		return nil, err
	}
	return g.newVariable(lo, hi, s), nil
}

func (g *Graph) newVariable(lower, upper *autodiff.Matrix, s shape.Shape) *Array {
	return g.add(&Array{
		shape: s,
		kind:  Variable,
		lower: lower,
		upper: upper,
	})
}

func boundMatrix(v interface{}, s shape.Shape, def float64) (*autodiff.Matrix, error) {
	if v == nil {
		return autodiff.Fill(s.Rows, s.Cols, def), nil
	}
	m, err := toMatrix(v)
	if err != nil {
		return nil, err
	}
	return m.Broadcast(s)
}

func checkBounds(lower, upper *autodiff.Matrix) error {
	for i := range lower.Data {
		lo, hi := lower.Data[i], upper.Data[i]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return errors.Wrapf(ErrDataValidation, "Missing bound at element %d", i)
		}
		if !(lo < hi) {
			return errors.Wrapf(ErrDataValidation, "Lower bound %v must be below upper bound %v", lo, hi)
		}
	}
	if mixedFinite(lower) || mixedFinite(upper) {
		return errors.Wrapf(ErrDataValidation, "Bounds must be all finite or all infinite")
	}
	return nil
}

func mixedFinite(m *autodiff.Matrix) bool {
	inf := 0
	for _, v := range m.Data {
		if math.IsInf(v, 0) {
			inf++
		}
	}
	return inf != 0 && inf != len(m.Data)
}
