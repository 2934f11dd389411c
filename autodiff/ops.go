package autodiff

import (
	"fmt"
	"math"

	"github.com/CraigKelly/greta/shape"
)

// Shapes are checked when the graph is built, so a mismatch on the tape is a
// bug in the caller and panics.
func mustBroadcast(a, b *Matrix) shape.Shape {
	s, err := shape.Broadcast(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("autodiff: %v", err))
	}
	return s
}

// binary applies f elementwise with broadcasting. da and db return the
// partial derivatives of f at (x, y) given the output z.
func (t *Tape) binary(a, b *Node, f func(x, y float64) float64, da, db func(x, y, z float64) float64) *Node {
	s := mustBroadcast(a.Value, b.Value)
	out := NewMatrix(s.Rows, s.Cols)
	for j := 0; j < s.Cols; j++ {
		for i := 0; i < s.Rows; i++ {
			out.Set(i, j, f(a.Value.at(i, j), b.Value.at(i, j)))
		}
	}

	back := func(g *Matrix) []*Matrix {
		var ga, gb *Matrix
		if a.needsGrad {
			ga = NewMatrix(a.Value.Rows, a.Value.Cols)
		}
		if b.needsGrad {
			gb = NewMatrix(b.Value.Rows, b.Value.Cols)
		}
		for j := 0; j < s.Cols; j++ {
			for i := 0; i < s.Rows; i++ {
				x, y, z := a.Value.at(i, j), b.Value.at(i, j), out.At(i, j)
				gv := g.At(i, j)
				if ga != nil {
					ga.Data[a.Value.offset(i, j)] += gv * da(x, y, z)
				}
				if gb != nil {
					gb.Data[b.Value.offset(i, j)] += gv * db(x, y, z)
				}
			}
		}
		return []*Matrix{ga, gb}
	}

	return t.record(out, back, a, b)
}

// unary applies f elementwise; df is the derivative at x given output y
func (t *Tape) unary(a *Node, f func(x float64) float64, df func(x, y float64) float64) *Node {
	out := NewMatrix(a.Value.Rows, a.Value.Cols)
	for i, x := range a.Value.Data {
		out.Data[i] = f(x)
	}

	back := func(g *Matrix) []*Matrix {
		ga := NewMatrix(a.Value.Rows, a.Value.Cols)
		for i, x := range a.Value.Data {
			ga.Data[i] = g.Data[i] * df(x, out.Data[i])
		}
		return []*Matrix{ga}
	}

	return t.record(out, back, a)
}

// Add is elementwise a + b
func (t *Tape) Add(a, b *Node) *Node {
	return t.binary(a, b,
		func(x, y float64) float64 { return x + y },
		func(x, y, z float64) float64 { return 1 },
		func(x, y, z float64) float64 { return 1 },
	)
}

// Sub is elementwise a - b
func (t *Tape) Sub(a, b *Node) *Node {
	return t.binary(a, b,
		func(x, y float64) float64 { return x - y },
		func(x, y, z float64) float64 { return 1 },
		func(x, y, z float64) float64 { return -1 },
	)
}

// Mul is elementwise a * b
func (t *Tape) Mul(a, b *Node) *Node {
	return t.binary(a, b,
		func(x, y float64) float64 { return x * y },
		func(x, y, z float64) float64 { return y },
		func(x, y, z float64) float64 { return x },
	)
}

// Div is elementwise a / b
func (t *Tape) Div(a, b *Node) *Node {
	return t.binary(a, b,
		func(x, y float64) float64 { return x / y },
		func(x, y, z float64) float64 { return 1 / y },
		func(x, y, z float64) float64 { return -x / (y * y) },
	)
}

// Neg is -a
func (t *Tape) Neg(a *Node) *Node {
	return t.Scale(a, -1)
}

// Scale multiplies by a constant
func (t *Tape) Scale(a *Node, c float64) *Node {
	return t.unary(a,
		func(x float64) float64 { return c * x },
		func(x, y float64) float64 { return c },
	)
}

// Shift adds a constant
func (t *Tape) Shift(a *Node, c float64) *Node {
	return t.unary(a,
		func(x float64) float64 { return x + c },
		func(x, y float64) float64 { return 1 },
	)
}

// Pow raises every element to a constant power
func (t *Tape) Pow(a *Node, p float64) *Node {
	return t.unary(a,
		func(x float64) float64 { return math.Pow(x, p) },
		func(x, y float64) float64 { return p * math.Pow(x, p-1) },
	)
}

// Square is a^2
func (t *Tape) Square(a *Node) *Node {
	return t.unary(a,
		func(x float64) float64 { return x * x },
		func(x, y float64) float64 { return 2 * x },
	)
}

// Exp is elementwise e^a
func (t *Tape) Exp(a *Node) *Node {
	return t.unary(a, math.Exp, func(x, y float64) float64 { return y })
}

// Log is the elementwise natural log
func (t *Tape) Log(a *Node) *Node {
	return t.unary(a, math.Log, func(x, y float64) float64 { return 1 / x })
}

// Log1p is log(1 + a)
func (t *Tape) Log1p(a *Node) *Node {
	return t.unary(a, math.Log1p, func(x, y float64) float64 { return 1 / (1 + x) })
}

// Sqrt is the elementwise square root
func (t *Tape) Sqrt(a *Node) *Node {
	return t.unary(a, math.Sqrt, func(x, y float64) float64 { return 0.5 / y })
}

// Lgamma is the log of the absolute gamma function
func (t *Tape) Lgamma(a *Node) *Node {
	return t.unary(a, Lgamma, func(x, y float64) float64 { return Digamma(x) })
}

// Atan is the elementwise arc tangent
func (t *Tape) Atan(a *Node) *Node {
	return t.unary(a, math.Atan, func(x, y float64) float64 { return 1 / (1 + x*x) })
}

// Ilogit is the logistic function 1 / (1 + e^-a)
func (t *Tape) Ilogit(a *Node) *Node {
	return t.unary(a, Ilogit, func(x, y float64) float64 { return y * (1 - y) })
}

// Log1pExp is the softplus log(1 + e^a)
func (t *Tape) Log1pExp(a *Node) *Node {
	return t.unary(a, Log1pExp, func(x, y float64) float64 { return Ilogit(x) })
}

// Log1mExp is log(1 - e^a) for a < 0
func (t *Tape) Log1mExp(a *Node) *Node {
	return t.unary(a, Log1mExp, func(x, y float64) float64 { return -1 / math.Expm1(-x) })
}

// NormalLogCDFDiff is log(Phi(b) - Phi(a)) for standard normal Phi and a < b.
// Either side may be an infinite constant.
func (t *Tape) NormalLogCDFDiff(a, b *Node) *Node {
	return t.binary(a, b,
		LogNormalCDFDiff,
		func(x, y, z float64) float64 { return -math.Exp(logNormalPDF(x) - z) },
		func(x, y, z float64) float64 { return math.Exp(logNormalPDF(y) - z) },
	)
}

// MatMul is the matrix product a %*% b
func (t *Tape) MatMul(a, b *Node) *Node {
	s, err := shape.MatMul(a.Value.Shape(), b.Value.Shape())
	if err != nil {
		panic(fmt.Sprintf("autodiff: %v", err))
	}
	out := matmul(a.Value, b.Value, s)

	back := func(g *Matrix) []*Matrix {
		var ga, gb *Matrix
		if a.needsGrad {
			ga = matmul(g, transpose(b.Value), a.Value.Shape())
		}
		if b.needsGrad {
			gb = matmul(transpose(a.Value), g, b.Value.Shape())
		}
		return []*Matrix{ga, gb}
	}

	return t.record(out, back, a, b)
}

func matmul(a, b *Matrix, s shape.Shape) *Matrix {
	out := NewMatrix(s.Rows, s.Cols)
	for j := 0; j < b.Cols; j++ {
		for k := 0; k < a.Cols; k++ {
			bkj := b.At(k, j)
			if bkj == 0 {
				continue
			}
			for i := 0; i < a.Rows; i++ {
				out.Data[j*out.Rows+i] += a.At(i, k) * bkj
			}
		}
	}
	return out
}

func transpose(a *Matrix) *Matrix {
	out := NewMatrix(a.Cols, a.Rows)
	for j := 0; j < a.Cols; j++ {
		for i := 0; i < a.Rows; i++ {
			out.Set(j, i, a.At(i, j))
		}
	}
	return out
}

// Transpose swaps rows and columns
func (t *Tape) Transpose(a *Node) *Node {
	back := func(g *Matrix) []*Matrix {
		return []*Matrix{transpose(g)}
	}
	return t.record(transpose(a.Value), back, a)
}

// Reduce sums a along the given reduction
func (t *Tape) Reduce(a *Node, r shape.Reduction) *Node {
	s := shape.Reduce(a.Value.Shape(), r)
	out := NewMatrix(s.Rows, s.Cols)
	for j := 0; j < a.Value.Cols; j++ {
		for i := 0; i < a.Value.Rows; i++ {
			out.Data[out.offset(i, j)] += a.Value.At(i, j)
		}
	}

	back := func(g *Matrix) []*Matrix {
		ga := NewMatrix(a.Value.Rows, a.Value.Cols)
		for j := 0; j < ga.Cols; j++ {
			for i := 0; i < ga.Rows; i++ {
				ga.Set(i, j, g.at(i, j))
			}
		}
		return []*Matrix{ga}
	}

	return t.record(out, back, a)
}

// Sum adds up every element into a scalar
func (t *Tape) Sum(a *Node) *Node {
	return t.Reduce(a, shape.ReduceAll)
}

// Index gathers rows and columns (0-based). A nil index keeps the whole
// dimension, and repeated indices are allowed.
func (t *Tape) Index(a *Node, rows, cols []int) *Node {
	if rows == nil {
		rows = seq(a.Value.Rows)
	}
	if cols == nil {
		cols = seq(a.Value.Cols)
	}
	out := NewMatrix(len(rows), len(cols))
	for j, c := range cols {
		for i, r := range rows {
			out.Set(i, j, a.Value.At(r, c))
		}
	}

	back := func(g *Matrix) []*Matrix {
		ga := NewMatrix(a.Value.Rows, a.Value.Cols)
		for j, c := range cols {
			for i, r := range rows {
				ga.Data[c*ga.Rows+r] += g.At(i, j)
			}
		}
		return []*Matrix{ga}
	}

	return t.record(out, back, a)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// Cbind joins nodes side by side; every node must have the same row count
func (t *Tape) Cbind(nodes ...*Node) *Node {
	shapes := make([]shape.Shape, len(nodes))
	for i, n := range nodes {
		shapes[i] = n.Value.Shape()
	}
	s, err := shape.BindCols(shapes...)
	if err != nil {
		panic(fmt.Sprintf("autodiff: %v", err))
	}

	// column-major, so columns are contiguous and cbind is concatenation
	out := NewMatrix(s.Rows, s.Cols)
	pos := 0
	for _, n := range nodes {
		copy(out.Data[pos:], n.Value.Data)
		pos += len(n.Value.Data)
	}

	back := func(g *Matrix) []*Matrix {
		grads := make([]*Matrix, len(nodes))
		pos := 0
		for i, n := range nodes {
			grads[i] = &Matrix{n.Value.Rows, n.Value.Cols, append([]float64(nil), g.Data[pos:pos+len(n.Value.Data)]...)}
			pos += len(n.Value.Data)
		}
		return grads
	}

	return t.record(out, back, nodes...)
}

// Rbind stacks nodes on top of each other; column counts must match
func (t *Tape) Rbind(nodes ...*Node) *Node {
	shapes := make([]shape.Shape, len(nodes))
	for i, n := range nodes {
		shapes[i] = n.Value.Shape()
	}
	s, err := shape.BindRows(shapes...)
	if err != nil {
		panic(fmt.Sprintf("autodiff: %v", err))
	}

	out := NewMatrix(s.Rows, s.Cols)
	rowStart := 0
	for _, n := range nodes {
		for j := 0; j < n.Value.Cols; j++ {
			for i := 0; i < n.Value.Rows; i++ {
				out.Set(rowStart+i, j, n.Value.At(i, j))
			}
		}
		rowStart += n.Value.Rows
	}

	back := func(g *Matrix) []*Matrix {
		grads := make([]*Matrix, len(nodes))
		rowStart := 0
		for k, n := range nodes {
			gn := NewMatrix(n.Value.Rows, n.Value.Cols)
			for j := 0; j < n.Value.Cols; j++ {
				for i := 0; i < n.Value.Rows; i++ {
					gn.Set(i, j, g.At(rowStart+i, j))
				}
			}
			grads[k] = gn
			rowStart += n.Value.Rows
		}
		return grads
	}

	return t.record(out, back, nodes...)
}
