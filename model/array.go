package model

import (
	"fmt"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/shape"
)

// Kind says how an array gets its value
type Kind int

// Array kinds. DistributionValue is the kind of any data or variable array
// once a distribution has been bound to it.
const (
	Data Kind = iota
	Variable
	Operation
	DistributionValue
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case Variable:
		return "variable"
	case Operation:
		return "operation"
	case DistributionValue:
		return "distribution"
	}
	return "unknown"
}

// Array is a node in the symbolic model graph. Arrays are created by a Graph
// and never change shape, kind or operands afterwards. The only thing that
// can happen to an existing array is having a distribution bound to it.
type Array struct {
	id    int
	graph *Graph
	shape shape.Shape
	kind  Kind // Data, Variable or Operation
	name  string

	value *autodiff.Matrix // data only
	lower *autodiff.Matrix // variable bounds, broadcast to shape
	upper *autodiff.Matrix
	op    *Op
	dist  *Distribution
}

// ID is unique within the owning graph
func (a *Array) ID() int {
	return a.id
}

// Graph returns the graph that owns the array
func (a *Array) Graph() *Graph {
	return a.graph
}

// Shape of the array
func (a *Array) Shape() shape.Shape {
	return a.shape
}

// Kind returns DistributionValue for bound arrays and the construction kind
// otherwise
func (a *Array) Kind() Kind {
	if a.dist != nil {
		return DistributionValue
	}
	return a.kind
}

// IsData is true for arrays built from fixed values, bound or not
func (a *Array) IsData() bool {
	return a.kind == Data
}

// IsVariable is true for free variables, bound or not
func (a *Array) IsVariable() bool {
	return a.kind == Variable
}

// Name is the display name given by Assign (may be empty)
func (a *Array) Name() string {
	return a.name
}

// Label is the name if there is one, otherwise kind and id
func (a *Array) Label() string {
	if a.name != "" {
		return a.name
	}
	return fmt.Sprintf("%s_%d", a.kind, a.id)
}

func (a *Array) String() string {
	return fmt.Sprintf("%s (%v %s)", a.Label(), a.shape, a.Kind())
}

// Value returns a copy of a data array's values, or nil
func (a *Array) Value() *autodiff.Matrix {
	if a.value == nil {
		return nil
	}
	return a.value.Clone()
}

// Bounds returns copies of a variable's declared bounds, or nils
func (a *Array) Bounds() (lower, upper *autodiff.Matrix) {
	if a.kind != Variable {
		return nil, nil
	}
	return a.lower.Clone(), a.upper.Clone()
}

// Producer is the operation that computes the array, nil unless the kind
// is Operation
func (a *Array) Producer() *Op {
	return a.op
}

// Distribution returns the bound distribution, or nil
func (a *Array) Distribution() *Distribution {
	return a.dist
}
