package model

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/greta/dist"
	"github.com/CraigKelly/greta/shape"
)

func TestDataCreation(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()

	a, err := g.Data(3)
	assert.NoError(err)
	assert.Equal(shape.Scalar, a.Shape())
	assert.Equal(Data, a.Kind())

	a, err = g.Data([]float64{1, 2, 3})
	assert.NoError(err)
	assert.Equal(shape.Shape{Rows: 3, Cols: 1}, a.Shape())

	a, err = g.Data([][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.NoError(err)
	assert.Equal(shape.Shape{Rows: 3, Cols: 2}, a.Shape())
	assert.Equal(4.0, a.Value().At(1, 1))

	_, err = g.Data([]float64{1, math.NaN()})
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = g.Data(math.Inf(1))
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = g.Data([][]float64{{1, 2}, {3}})
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = g.Data("abc")
	assert.True(errors.Is(err, ErrDataValidation))

	assert.Len(g.Nodes(), 3)
}

func TestVariableCreation(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()

	v, err := g.Variable(nil, nil, 2, 3)
	assert.NoError(err)
	assert.Equal(shape.Shape{Rows: 2, Cols: 3}, v.Shape())
	assert.Equal(Variable, v.Kind())
	lo, hi := v.Bounds()
	assert.True(math.IsInf(lo.Data[5], -1))
	assert.True(math.IsInf(hi.Data[0], 1))

	v, err = g.Variable(0, []float64{1, 2}, 2)
	assert.NoError(err)
	lo, hi = v.Bounds()
	assert.Equal([]float64{0, 0}, lo.Data)
	assert.Equal([]float64{1, 2}, hi.Data)

	_, err = g.Variable(1, 1)
	assert.Error(err)
	_, err = g.Variable([]float64{0, math.Inf(-1)}, nil, 2)
	assert.Error(err)
	_, err = g.Variable(nil, nil, 0)
	assert.True(errors.Is(err, ErrShape))
	_, err = g.Variable([]float64{0, 1, 2}, nil, 2)
	assert.True(errors.Is(err, ErrShape))
}

func TestOperationShapes(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()
	x, err := g.Data([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	b, err := g.Variable(nil, nil, 2)
	require.NoError(t, err)

	cases := []struct {
		name string
		make func() (*Array, error)
		exp  shape.Shape
	}{
		{"matmul", func() (*Array, error) { return g.MatMul(x, b) }, shape.Shape{Rows: 3, Cols: 1}},
		{"broadcast", func() (*Array, error) { return g.Add(x, 1) }, shape.Shape{Rows: 3, Cols: 2}},
		{"transpose", func() (*Array, error) { return g.Transpose(x) }, shape.Shape{Rows: 2, Cols: 3}},
		{"sum", func() (*Array, error) { return g.Sum(x) }, shape.Scalar},
		{"mean", func() (*Array, error) { return g.Mean(x) }, shape.Scalar},
		{"rowsums", func() (*Array, error) { return g.RowSums(x) }, shape.Shape{Rows: 3, Cols: 1}},
		{"colsums", func() (*Array, error) { return g.ColSums(x) }, shape.Shape{Rows: 1, Cols: 2}},
		{"index", func() (*Array, error) { return g.Index(x, []int{0, 2}, nil) }, shape.Shape{Rows: 2, Cols: 2}},
		{"cbind", func() (*Array, error) { return g.Cbind(x, b, b) }, shape.Shape{Rows: 3, Cols: 2}},
		{"rbind", func() (*Array, error) { return g.Rbind(x, x) }, shape.Shape{Rows: 6, Cols: 2}},
		{"pow", func() (*Array, error) { return g.Pow(b, 2) }, shape.Shape{Rows: 2, Cols: 1}},
		{"ilogit", func() (*Array, error) { return g.Ilogit(b) }, shape.Shape{Rows: 2, Cols: 1}},
	}

	for _, c := range cases {
		if c.name == "cbind" {
			// b is 2x1 and cannot be bound to the 3 row x
			_, err := c.make()
			assert.True(errors.Is(err, ErrShape), c.name)
			continue
		}
		a, err := c.make()
		if assert.NoError(err, c.name) {
			assert.Equal(c.exp, a.Shape(), c.name)
			assert.Equal(Operation, a.Kind(), c.name)
			assert.NotNil(a.Producer(), c.name)
		}
	}
}

func TestFailedConstructionLeavesGraph(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()
	x, err := g.Data([]float64{1, 2, 3})
	require.NoError(t, err)
	before := len(g.Nodes())

	_, err = g.Add(x, []float64{1, 2})
	assert.True(errors.Is(err, ErrShape))
	_, err = g.MatMul(x, x)
	assert.True(errors.Is(err, ErrShape))
	_, err = g.Index(x, []int{3}, nil)
	assert.True(errors.Is(err, ErrShape))
	_, err = g.Normal(x, []float64{1, 2})
	assert.True(errors.Is(err, ErrShape))
	_, err = g.Normal(0, 1, 2)
	assert.NoError(err)

	// the successful normal adds two data parameters
	assert.Len(g.Nodes(), before+2)
	assert.Len(g.Distributions(), 1)

	other := NewGraph()
	_, err = other.Add(x, 1)
	assert.Error(err)
}

func TestAssignAndLookup(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()
	a, err := g.Data(1)
	require.NoError(t, err)

	_, err = g.Assign("alpha", a)
	assert.NoError(err)
	_, err = g.Assign("also", a)
	assert.NoError(err)
	assert.Equal("alpha", a.Label())

	found, ok := g.Lookup("also")
	assert.True(ok)
	assert.Equal(a, found)

	_, ok = g.Lookup("missing")
	assert.False(ok)

	_, err = g.Assign("", a)
	assert.Error(err)
}

func TestDuplicateDistribution(t *testing.T) {
	assert := assert.New(t)

	for _, order := range [][2]int{{0, 1}, {1, 0}} {
		g := NewGraph()
		y, err := g.Data([]float64{1, 2})
		require.NoError(t, err)

		d1, err := g.Normal(0, 1, 2)
		require.NoError(t, err)
		d2, err := g.Cauchy(0, 1, 2)
		require.NoError(t, err)
		ds := []*Distribution{d1, d2}

		assert.NoError(g.SetDistribution(y, ds[order[0]]))
		err = g.SetDistribution(y, ds[order[1]])
		assert.True(errors.Is(err, ErrDuplicateDistribution), "order %v", order)
		assert.Equal(ds[order[0]], y.Distribution())
		assert.Equal(DistributionValue, y.Kind())
	}

	// a distribution is bound at most once
	g := NewGraph()
	d, err := g.Normal(0, 1)
	require.NoError(t, err)
	_, err = d.NewVariable()
	require.NoError(t, err)
	_, err = d.NewVariable()
	assert.True(errors.Is(err, ErrInvalidBinding))
}

func TestBindingRules(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()
	y, err := g.Data([]float64{1, 2, 3})
	require.NoError(t, err)

	d, err := g.Normal(0, 1, 2)
	require.NoError(t, err)
	assert.True(errors.Is(g.SetDistribution(y, d), ErrShape))

	op, err := g.Exp(y)
	require.NoError(t, err)
	d, err = g.Normal(0, 1, 3)
	require.NoError(t, err)
	assert.True(errors.Is(g.SetDistribution(op, d), ErrInvalidBinding))

	// data outside the support
	neg, err := g.Data(-1)
	require.NoError(t, err)
	d, err = g.Lognormal(0, 1)
	require.NoError(t, err)
	assert.True(errors.Is(g.SetDistribution(neg, d), ErrDataValidation))

	frac, err := g.Data(1.5)
	require.NoError(t, err)
	d, err = g.Poisson(2)
	require.NoError(t, err)
	assert.True(errors.Is(g.SetDistribution(frac, d), ErrDataValidation))

	// uniform needs fixed limits
	v, err := g.Variable(nil, nil)
	require.NoError(t, err)
	_, err = g.Uniform(0, v)
	assert.Error(err)
	_, err = g.Uniform(1, 0)
	assert.Error(err)

	// the support is respected by NewVariable
	d, err = g.Beta(2, 2, 3)
	require.NoError(t, err)
	b, err := d.NewVariable()
	require.NoError(t, err)
	lo, hi := b.Bounds()
	assert.Equal([]float64{0, 0, 0}, lo.Data)
	assert.Equal([]float64{1, 1, 1}, hi.Data)
}

func TestTruncationBinding(t *testing.T) {
	assert := assert.New(t)

	g := NewGraph()

	// narrower than the gamma support: no truncated gamma
	v, err := g.Variable(0, 10)
	require.NoError(t, err)
	d, err := g.Gamma(2, 2)
	require.NoError(t, err)
	assert.True(errors.Is(g.SetDistribution(v, d), ErrTruncation))
	assert.Nil(v.Distribution())

	// positive normal
	v, err = g.Variable(0, nil)
	require.NoError(t, err)
	d, err = g.Normal(0, 1)
	require.NoError(t, err)
	assert.NoError(g.SetDistribution(v, d))
	assert.True(d.Truncated())

	// wider than the support is simply narrowed
	v, err = g.Variable(nil, nil)
	require.NoError(t, err)
	d, err = g.Exponential(1)
	require.NoError(t, err)
	assert.NoError(g.SetDistribution(v, d))
	assert.False(d.Truncated())

	// bounds entirely outside the support
	v, err = g.Variable(2, 3)
	require.NoError(t, err)
	d, err = g.Uniform(0, 1)
	require.NoError(t, err)
	assert.Error(g.SetDistribution(v, d))

	for _, f := range []dist.Family{dist.Normal, dist.Lognormal, dist.Exponential, dist.Cauchy, dist.Logistic} {
		assert.True(f.CanTruncate(), "%v", f)
	}
}
