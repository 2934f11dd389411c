// Package autodiff is a small reverse-mode automatic differentiation engine
// over dense matrices.
//
// Operations are recorded on a Tape as they are evaluated. Each recorded node
// keeps its inputs and a backward function mapping the gradient of the output
// to gradients of the inputs. Backward walks the tape in reverse, so every
// node is finished before its inputs are visited.
package autodiff

import (
	"github.com/pkg/errors"
)

// backwardFunc maps the output gradient to one gradient per input
type backwardFunc func(grad *Matrix) []*Matrix

// Node is a value recorded on a Tape
type Node struct {
	Value *Matrix

	tape      *Tape
	inputs    []*Node
	backward  backwardFunc
	grad      *Matrix
	needsGrad bool
}

// Tape records a single forward evaluation. A tape is not safe for
// concurrent use, but independent tapes share nothing.
type Tape struct {
	nodes []*Node
}

// NewTape creates an empty tape
func NewTape() *Tape {
	return &Tape{}
}

// Const records a value that never receives a gradient
func (t *Tape) Const(m *Matrix) *Node {
	n := &Node{Value: m, tape: t}
	t.nodes = append(t.nodes, n)
	return n
}

// Scalar records a 1x1 constant
func (t *Tape) Scalar(v float64) *Node {
	return t.Const(ScalarMatrix(v))
}

// Variable records a leaf whose gradient is wanted
func (t *Tape) Variable(m *Matrix) *Node {
	n := &Node{Value: m, tape: t, needsGrad: true}
	t.nodes = append(t.nodes, n)
	return n
}

func (t *Tape) record(value *Matrix, back backwardFunc, inputs ...*Node) *Node {
	n := &Node{Value: value, tape: t, inputs: inputs}
	for _, in := range inputs {
		if in.tape != t {
			panic("autodiff: node recorded on a different tape")
		}
		if in.needsGrad {
			n.needsGrad = true
		}
	}
	if n.needsGrad {
		n.backward = back
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Backward propagates d(out)/d(node) to every node that needs a gradient.
// out must be a scalar.
func (t *Tape) Backward(out *Node) error {
	if out.tape != t {
		return errors.Errorf("Output node is not on this tape")
	}
	if out.Value.Rows != 1 || out.Value.Cols != 1 {
		return errors.Errorf("Backward needs a scalar output, got %v", out.Value.Shape())
	}

	for _, n := range t.nodes {
		n.grad = nil
	}
	out.grad = ScalarMatrix(1.0)

	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := t.nodes[i]
		if n.grad == nil || n.backward == nil {
			continue
		}
		grads := n.backward(n.grad)
		for j, in := range n.inputs {
			if !in.needsGrad || grads[j] == nil {
				continue
			}
			if in.grad == nil {
				in.grad = grads[j].Clone()
				continue
			}
			for k, g := range grads[j].Data {
				in.grad.Data[k] += g
			}
		}
	}

	return nil
}

// Grad returns the gradient found by the last Backward call. Nodes not on a
// path to the output get a zero gradient.
func (n *Node) Grad() *Matrix {
	if n.grad == nil {
		return NewMatrix(n.Value.Rows, n.Value.Cols)
	}
	return n.grad
}

// Tape returns the tape that recorded the node
func (n *Node) Tape() *Tape {
	return n.tape
}
