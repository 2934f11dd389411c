package model

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/shape"
)

// OpKind is the closed set of operations an Operation array can apply
type OpKind int

// Supported operations
const (
	OpAdd OpKind = iota
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpPow
	OpMatMul
	OpTranspose
	OpExp
	OpLog
	OpSqrt
	OpIlogit
	OpSum
	OpMean
	OpRowSums
	OpColSums
	OpIndex
	OpCbind
	OpRbind
)

var opNames = [...]string{
	OpAdd:       "add",
	OpSub:       "subtract",
	OpMul:       "multiply",
	OpDiv:       "divide",
	OpNeg:       "negate",
	OpPow:       "power",
	OpMatMul:    "matmul",
	OpTranspose: "transpose",
	OpExp:       "exp",
	OpLog:       "log",
	OpSqrt:      "sqrt",
	OpIlogit:    "ilogit",
	OpSum:       "sum",
	OpMean:      "mean",
	OpRowSums:   "rowSums",
	OpColSums:   "colSums",
	OpIndex:     "index",
	OpCbind:     "cbind",
	OpRbind:     "rbind",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return "unknown"
	}
	return opNames[k]
}

// Op records how an operation array is computed from its operands
type Op struct {
	Kind     OpKind
	Operands []*Array

	power      float64
	rows, cols []int
}

func (o *Op) String() string {
	return o.Kind.String()
}

// eval records the operation on a tape given its evaluated operands
func (o *Op) eval(t *autodiff.Tape, in []*autodiff.Node) *autodiff.Node {
	switch o.Kind {
	case OpAdd:
		return t.Add(in[0], in[1])
	case OpSub:
		return t.Sub(in[0], in[1])
	case OpMul:
		return t.Mul(in[0], in[1])
	case OpDiv:
		return t.Div(in[0], in[1])
	case OpNeg:
		return t.Neg(in[0])
	case OpPow:
		return t.Pow(in[0], o.power)
	case OpMatMul:
		return t.MatMul(in[0], in[1])
	case OpTranspose:
		return t.Transpose(in[0])
	case OpExp:
		return t.Exp(in[0])
	case OpLog:
		return t.Log(in[0])
	case OpSqrt:
		return t.Sqrt(in[0])
	case OpIlogit:
		return t.Ilogit(in[0])
	case OpSum:
		return t.Sum(in[0])
	case OpMean:
		return t.Scale(t.Sum(in[0]), 1/float64(len(in[0].Value.Data)))
	case OpRowSums:
		return t.Reduce(in[0], shape.ReduceRows)
	case OpColSums:
		return t.Reduce(in[0], shape.ReduceCols)
	case OpIndex:
		return t.Index(in[0], o.rows, o.cols)
	case OpCbind:
		return t.Cbind(in...)
	case OpRbind:
		return t.Rbind(in...)
	}
	panic(errors.Errorf("Unknown operation %d", o.Kind))
}

func (g *Graph) operands(vals ...interface{}) ([]*Array, error) {
	out := make([]*Array, len(vals))
	for i, v := range vals {
		a, err := g.asArray(v)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad operand %d", i+1)
		}
		out[i] = a
	}
	return out, nil
}

func (g *Graph) newOp(op *Op, s shape.Shape) *Array {
	g.commit(op.Operands)
	return g.add(&Array{
		shape: s,
		kind:  Operation,
		op:    op,
	})
}

func (g *Graph) elementwise(k OpKind, a, b interface{}) (*Array, error) {
	ops, err := g.operands(a, b)
	if err != nil {
		return nil, err
	}
	s, err := shape.Broadcast(ops[0].shape, ops[1].shape)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot %s", k)
	}
	return g.newOp(&Op{Kind: k, Operands: ops}, s), nil
}

func (g *Graph) unary(k OpKind, a interface{}, s func(shape.Shape) shape.Shape) (*Array, error) {
	ops, err := g.operands(a)
	if err != nil {
		return nil, err
	}
	out := ops[0].shape
	if s != nil {
		out = s(out)
	}
	return g.newOp(&Op{Kind: k, Operands: ops}, out), nil
}

// Add is elementwise a + b with broadcasting
func (g *Graph) Add(a, b interface{}) (*Array, error) {
	return g.elementwise(OpAdd, a, b)
}

// Sub is elementwise a - b with broadcasting
func (g *Graph) Sub(a, b interface{}) (*Array, error) {
	return g.elementwise(OpSub, a, b)
}

// Mul is elementwise a * b with broadcasting
func (g *Graph) Mul(a, b interface{}) (*Array, error) {
	return g.elementwise(OpMul, a, b)
}

// Div is elementwise a / b with broadcasting
func (g *Graph) Div(a, b interface{}) (*Array, error) {
	return g.elementwise(OpDiv, a, b)
}

// Neg is -a
func (g *Graph) Neg(a interface{}) (*Array, error) {
	return g.unary(OpNeg, a, nil)
}

// Pow raises every element to a fixed power
func (g *Graph) Pow(a interface{}, p float64) (*Array, error) {
	out, err := g.unary(OpPow, a, nil)
	if err != nil {
		return nil, err
	}
	out.op.power = p
	return out, nil
}

// MatMul is matrix multiplication
func (g *Graph) MatMul(a, b interface{}) (*Array, error) {
	ops, err := g.operands(a, b)
	if err != nil {
		return nil, err
	}
	s, err := shape.MatMul(ops[0].shape, ops[1].shape)
	if err != nil {
		return nil, err
	}
	return g.newOp(&Op{Kind: OpMatMul, Operands: ops}, s), nil
}

// Transpose swaps rows and columns
func (g *Graph) Transpose(a interface{}) (*Array, error) {
	return g.unary(OpTranspose, a, shape.Transpose)
}

// Exp is elementwise e^a
func (g *Graph) Exp(a interface{}) (*Array, error) {
	return g.unary(OpExp, a, nil)
}

// Log is the elementwise natural log
func (g *Graph) Log(a interface{}) (*Array, error) {
	return g.unary(OpLog, a, nil)
}

// Sqrt is the elementwise square root
func (g *Graph) Sqrt(a interface{}) (*Array, error) {
	return g.unary(OpSqrt, a, nil)
}

// Ilogit is the elementwise inverse logit
func (g *Graph) Ilogit(a interface{}) (*Array, error) {
	return g.unary(OpIlogit, a, nil)
}

func reducer(r shape.Reduction) func(shape.Shape) shape.Shape {
	return func(s shape.Shape) shape.Shape {
		return shape.Reduce(s, r)
	}
}

// Sum adds every element into a scalar
func (g *Graph) Sum(a interface{}) (*Array, error) {
	return g.unary(OpSum, a, reducer(shape.ReduceAll))
}

// Mean averages every element into a scalar
func (g *Graph) Mean(a interface{}) (*Array, error) {
	return g.unary(OpMean, a, reducer(shape.ReduceAll))
}

// RowSums gives a column vector of row totals
func (g *Graph) RowSums(a interface{}) (*Array, error) {
	return g.unary(OpRowSums, a, reducer(shape.ReduceRows))
}

// ColSums gives a row vector of column totals
func (g *Graph) ColSums(a interface{}) (*Array, error) {
	return g.unary(OpColSums, a, reducer(shape.ReduceCols))
}

// Index selects rows and columns by 0-based index. A nil slice keeps the
// whole dimension.
func (g *Graph) Index(a interface{}, rows, cols []int) (*Array, error) {
	ops, err := g.operands(a)
	if err != nil {
		return nil, err
	}
	s, err := shape.Index(ops[0].shape, rows, cols)
	if err != nil {
		return nil, err
	}
	op := &Op{
		Kind:     OpIndex,
		Operands: ops,
		rows:     append([]int(nil), rows...),
		cols:     append([]int(nil), cols...),
	}
	if rows == nil {
		op.rows = nil
	}
	if cols == nil {
		op.cols = nil
	}
	return g.newOp(op, s), nil
}

// Cbind joins arrays side by side
func (g *Graph) Cbind(vals ...interface{}) (*Array, error) {
	return g.bind(OpCbind, shape.BindCols, vals)
}

// Rbind stacks arrays on top of each other
func (g *Graph) Rbind(vals ...interface{}) (*Array, error) {
	return g.bind(OpRbind, shape.BindRows, vals)
}

func (g *Graph) bind(k OpKind, combine func(...shape.Shape) (shape.Shape, error), vals []interface{}) (*Array, error) {
	ops, err := g.operands(vals...)
	if err != nil {
		return nil, err
	}
	shapes := make([]shape.Shape, len(ops))
	for i, a := range ops {
		shapes[i] = a.shape
	}
	s, err := combine(shapes...)
	if err != nil {
		return nil, err
	}
	return g.newOp(&Op{Kind: k, Operands: ops}, s), nil
}
