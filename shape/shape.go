// Package shape implements the shape inference rules shared by every array
// constructor. All arrays are two dimensional: vectors are column (or row)
// matrices, never bare sequences.
package shape

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrShape is the cause of every shape inference failure.
var ErrShape = errors.New("Shape error")

// Shape is a (rows, cols) pair. Both dimensions are >= 1 for a valid shape.
type Shape struct {
	Rows int
	Cols int
}

// Scalar is the 1x1 shape.
var Scalar = Shape{1, 1}

// New returns a checked shape.
func New(rows, cols int) (Shape, error) {
	s := Shape{rows, cols}
	if err := s.Check(); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// FromDims builds a shape from an R-style dim argument: none means scalar, one
// value means a column vector, two values mean a matrix.
func FromDims(dims ...int) (Shape, error) {
	switch len(dims) {
	case 0:
		return Scalar, nil
	case 1:
		return New(dims[0], 1)
	case 2:
		return New(dims[0], dims[1])
	}
	return Shape{}, errors.Wrapf(ErrShape, "Only 2 dimensions are supported, got %d", len(dims))
}

// Check returns an error if either dimension is < 1
func (s Shape) Check() error {
	if s.Rows < 1 || s.Cols < 1 {
		return errors.Wrapf(ErrShape, "Invalid dimensions %v", s)
	}
	return nil
}

// Len is the number of elements.
func (s Shape) Len() int {
	return s.Rows * s.Cols
}

// IsScalar is true for 1x1 shapes.
func (s Shape) IsScalar() bool {
	return s.Rows == 1 && s.Cols == 1
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// broadcastDim follows R-like recycling: equal, or one side is 1.
func broadcastDim(a, b int) (int, bool) {
	switch {
	case a == b:
		return a, true
	case a == 1:
		return b, true
	case b == 1:
		return a, true
	}
	return 0, false
}

// Broadcast returns the result shape of an elementwise binary operation.
func Broadcast(a, b Shape) (Shape, error) {
	r, okR := broadcastDim(a.Rows, b.Rows)
	c, okC := broadcastDim(a.Cols, b.Cols)
	if !okR || !okC {
		return Shape{}, errors.Wrapf(ErrShape, "Cannot broadcast %v with %v", a, b)
	}
	return Shape{r, c}, nil
}

// BroadcastAll folds Broadcast over any number of shapes.
func BroadcastAll(shapes ...Shape) (Shape, error) {
	if len(shapes) < 1 {
		return Shape{}, errors.Wrapf(ErrShape, "No shapes to broadcast")
	}
	out := shapes[0]
	var err error
	for _, s := range shapes[1:] {
		out, err = Broadcast(out, s)
		if err != nil {
			return Shape{}, err
		}
	}
	return out, nil
}

// MatMul returns the result of a (r x k) %*% (k x c) product.
func MatMul(a, b Shape) (Shape, error) {
	if a.Cols != b.Rows {
		return Shape{}, errors.Wrapf(ErrShape, "Non-conformable arguments %v %%*%% %v", a, b)
	}
	return Shape{a.Rows, b.Cols}, nil
}

// Transpose swaps rows and cols.
func Transpose(a Shape) Shape {
	return Shape{a.Cols, a.Rows}
}

// Index returns the shape selected by the given 0-based row and column
// indices. A nil index selects the whole dimension. The result is always a
// matrix: selecting one row of a matrix gives a 1 x c array.
func Index(s Shape, rows []int, cols []int) (Shape, error) {
	out := s
	if rows != nil {
		if len(rows) < 1 {
			return Shape{}, errors.Wrapf(ErrShape, "Empty row index on %v", s)
		}
		for _, r := range rows {
			if r < 0 || r >= s.Rows {
				return Shape{}, errors.Wrapf(ErrShape, "Row index %d out of bounds for %v", r, s)
			}
		}
		out.Rows = len(rows)
	}
	if cols != nil {
		if len(cols) < 1 {
			return Shape{}, errors.Wrapf(ErrShape, "Empty column index on %v", s)
		}
		for _, c := range cols {
			if c < 0 || c >= s.Cols {
				return Shape{}, errors.Wrapf(ErrShape, "Column index %d out of bounds for %v", c, s)
			}
		}
		out.Cols = len(cols)
	}
	return out, nil
}

// BindCols is cbind: row counts must match, columns add up.
func BindCols(shapes ...Shape) (Shape, error) {
	if len(shapes) < 1 {
		return Shape{}, errors.Wrapf(ErrShape, "Nothing to cbind")
	}
	out := shapes[0]
	for _, s := range shapes[1:] {
		if s.Rows != out.Rows {
			return Shape{}, errors.Wrapf(ErrShape, "cbind row mismatch %v and %v", out, s)
		}
		out.Cols += s.Cols
	}
	return out, nil
}

// BindRows is rbind: column counts must match, rows add up.
func BindRows(shapes ...Shape) (Shape, error) {
	if len(shapes) < 1 {
		return Shape{}, errors.Wrapf(ErrShape, "Nothing to rbind")
	}
	out := shapes[0]
	for _, s := range shapes[1:] {
		if s.Cols != out.Cols {
			return Shape{}, errors.Wrapf(ErrShape, "rbind column mismatch %v and %v", out, s)
		}
		out.Rows += s.Rows
	}
	return out, nil
}

// Reduction identifies how a reduction collapses its operand.
type Reduction int

// Supported reductions
const (
	ReduceAll Reduction = iota
	ReduceRows
	ReduceCols
)

// Reduce returns the shape left after a reduction. ReduceRows sums across
// each row (giving a column vector) and ReduceCols sums down each column.
func Reduce(s Shape, r Reduction) Shape {
	switch r {
	case ReduceRows:
		return Shape{s.Rows, 1}
	case ReduceCols:
		return Shape{1, s.Cols}
	}
	return Scalar
}
