package shape

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromDims(t *testing.T) {
	assert := assert.New(t)

	s, err := FromDims()
	assert.NoError(err)
	assert.Equal(Scalar, s)

	s, err = FromDims(3)
	assert.NoError(err)
	assert.Equal(Shape{3, 1}, s)

	s, err = FromDims(2, 4)
	assert.NoError(err)
	assert.Equal(Shape{2, 4}, s)

	_, err = FromDims(1, 2, 3)
	assert.True(errors.Is(err, ErrShape))

	_, err = FromDims(0)
	assert.True(errors.Is(err, ErrShape))
}

func TestBroadcast(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		a, b Shape
		exp  Shape
		ok   bool
	}{
		{Shape{1, 1}, Shape{3, 2}, Shape{3, 2}, true},
		{Shape{3, 1}, Shape{3, 2}, Shape{3, 2}, true},
		{Shape{1, 2}, Shape{3, 2}, Shape{3, 2}, true},
		{Shape{3, 1}, Shape{1, 4}, Shape{3, 4}, true},
		{Shape{3, 2}, Shape{3, 2}, Shape{3, 2}, true},
		{Shape{2, 2}, Shape{3, 2}, Shape{}, false},
		{Shape{3, 3}, Shape{3, 2}, Shape{}, false},
	}

	for _, c := range cases {
		s, err := Broadcast(c.a, c.b)
		if c.ok {
			assert.NoError(err)
			assert.Equal(c.exp, s)
		} else {
			assert.True(errors.Is(err, ErrShape), "%v %v", c.a, c.b)
		}
	}
}

// Elementwise broadcasting must not care about operand order or grouping
func TestBroadcastCommutativeAssociative(t *testing.T) {
	assert := assert.New(t)

	var shapes []Shape
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			shapes = append(shapes, Shape{r, c})
		}
	}

	for _, a := range shapes {
		for _, b := range shapes {
			ab, errAB := Broadcast(a, b)
			ba, errBA := Broadcast(b, a)
			assert.Equal(errAB == nil, errBA == nil)
			assert.Equal(ab, ba)

			for _, c := range shapes {
				left, errL := Broadcast(ab, c)
				if errAB != nil {
					errL = errAB
				}
				bc, errBC := Broadcast(b, c)
				right, errR := Broadcast(a, bc)
				if errBC != nil {
					errR = errBC
				}
				assert.Equal(errL == nil, errR == nil, "%v %v %v", a, b, c)
				if errL == nil && errR == nil {
					assert.Equal(left, right)
				}
			}
		}
	}
}

func TestMatMulTranspose(t *testing.T) {
	assert := assert.New(t)

	s, err := MatMul(Shape{3, 2}, Shape{2, 5})
	assert.NoError(err)
	assert.Equal(Shape{3, 5}, s)

	_, err = MatMul(Shape{3, 2}, Shape{3, 2})
	assert.True(errors.Is(err, ErrShape))

	assert.Equal(Shape{2, 3}, Transpose(Shape{3, 2}))
}

func TestIndexKeepsTwoDims(t *testing.T) {
	assert := assert.New(t)

	s, err := Index(Shape{4, 3}, []int{1}, nil)
	assert.NoError(err)
	assert.Equal(Shape{1, 3}, s)

	s, err = Index(Shape{4, 3}, nil, []int{2})
	assert.NoError(err)
	assert.Equal(Shape{4, 1}, s)

	s, err = Index(Shape{4, 3}, []int{0, 0, 3}, []int{1, 2})
	assert.NoError(err)
	assert.Equal(Shape{3, 2}, s)

	_, err = Index(Shape{4, 3}, []int{4}, nil)
	assert.True(errors.Is(err, ErrShape))
	_, err = Index(Shape{4, 3}, nil, []int{-1})
	assert.True(errors.Is(err, ErrShape))
	_, err = Index(Shape{4, 3}, []int{}, nil)
	assert.True(errors.Is(err, ErrShape))
}

func TestBindAndReduce(t *testing.T) {
	assert := assert.New(t)

	s, err := BindCols(Shape{3, 1}, Shape{3, 2})
	assert.NoError(err)
	assert.Equal(Shape{3, 3}, s)
	_, err = BindCols(Shape{3, 1}, Shape{2, 1})
	assert.True(errors.Is(err, ErrShape))

	s, err = BindRows(Shape{1, 2}, Shape{4, 2})
	assert.NoError(err)
	assert.Equal(Shape{5, 2}, s)
	_, err = BindRows(Shape{1, 2}, Shape{1, 3})
	assert.True(errors.Is(err, ErrShape))

	assert.Equal(Scalar, Reduce(Shape{4, 3}, ReduceAll))
	assert.Equal(Shape{4, 1}, Reduce(Shape{4, 3}, ReduceRows))
	assert.Equal(Shape{1, 3}, Reduce(Shape{4, 3}, ReduceCols))
}
