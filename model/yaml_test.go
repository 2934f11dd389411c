package model

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regressionYAML = `
targets: [mu, beta, sigma]
nodes:
  - name: x
    file: x.dat
  - name: y
    data: [0.5, 1.1, 2.2, 2.8]
  - name: mu
    distribution: {family: normal, params: [0, 10]}
  - name: beta
    distribution: {family: normal, params: [0, 10]}
  - name: sigma
    variable: {lower: 0}
  - observe: sigma
    distribution: {family: exponential, params: [1]}
  - name: xb
    op: {kind: multiply, args: [x, beta]}
  - name: eta
    op: {kind: add, args: [mu, xb]}
  - observe: y
    distribution: {family: normal, params: [eta, sigma]}
`

func TestYAMLReader(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.dat"), []byte("4 1\n-1\n0\n1\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reg.yaml"), []byte(regressionYAML), 0o644))

	m, err := NewModelFromFile(YAMLReader{Dir: dir}, filepath.Join(dir, "reg.yaml"))
	require.NoError(t, err)
	assert.Equal("reg", m.Name)
	assert.Equal([]string{"mu", "beta", "sigma"}, m.ParamNames())

	g, _, err := YAMLReader{Dir: dir}.ReadModel([]byte(regressionYAML))
	require.NoError(t, err)
	eta, ok := g.Lookup("eta")
	require.True(t, ok)
	assert.Equal(Operation, eta.Kind())
	sigma, ok := g.Lookup("sigma")
	require.True(t, ok)
	assert.Equal(DistributionValue, sigma.Kind())

	m2, err := Compile(g)
	require.NoError(t, err)
	v, err := m2.Calculate(eta, []float64{1, 2, 0.5})
	require.NoError(t, err)
	assert.Equal([]float64{-1, 1, 3, 5}, v.Data)
}

func TestYAMLReaderErrors(t *testing.T) {
	assert := assert.New(t)

	r := YAMLReader{}
	cases := []struct {
		name string
		doc  string
	}{
		{"empty", "nodes: []"},
		{"bad yaml", "nodes: [ {"},
		{"unknown name", "nodes:\n  - op: {kind: exp, args: [nope]}"},
		{"unknown family", "nodes:\n  - distribution: {family: wishart, params: [1]}"},
		{"unknown op", "nodes:\n  - op: {kind: frobnicate, args: [1]}"},
		{"arity", "nodes:\n  - op: {kind: add, args: [1]}"},
		{"no kind", "nodes:\n  - name: a"},
		{"missing data", "nodes:\n  - data: [1, .nan]"},
		{"unknown target", "targets: [b]\nnodes:\n  - name: a\n    data: 1"},
		{"observe unknown", "nodes:\n  - observe: a\n    distribution: {family: normal, params: [0, 1]}"},
	}

	for _, c := range cases {
		_, _, err := r.ReadModel([]byte(c.doc))
		assert.Error(err, c.name)
	}

	_, _, err := r.ReadModel([]byte("nodes:\n  - name: y\n    data: [1, 2]\n  - observe: y\n    distribution: {family: normal, params: [0, 1], dim: [3]}"))
	assert.True(errors.Is(err, ErrShape))

	_, err = NewModelFromFile(r, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(err)
}

func TestYAMLValues(t *testing.T) {
	assert := assert.New(t)

	g, _, err := YAMLReader{}.ReadModel([]byte(`
nodes:
  - name: m
    data: [[1, 2], [3, 4], [5, 6]]
  - name: v
    variable: {lower: [0, 1], upper: .inf, dim: [2]}
  - name: s
    op: {kind: index, args: [m], rows: [2], cols: [0, 1]}
  - name: p
    op: {kind: power, args: [m], power: 2}
`))
	require.NoError(t, err)

	m, _ := g.Lookup("m")
	assert.Equal(3, m.Shape().Rows)
	assert.Equal(2, m.Shape().Cols)

	v, _ := g.Lookup("v")
	lo, hi := v.Bounds()
	assert.Equal([]float64{0, 1}, lo.Data)
	assert.True(math.IsInf(hi.Data[1], 1))

	s, _ := g.Lookup("s")
	assert.Equal(1, s.Shape().Rows)
	p, _ := g.Lookup("p")
	assert.Equal(OpPow, p.Producer().Kind)
}

func TestReadMatrix(t *testing.T) {
	assert := assert.New(t)

	m, err := ReadMatrix("2 3\n1 2 3\n4 5 6\n")
	assert.NoError(err)
	assert.Equal(2, m.Rows)
	assert.Equal(3, m.Cols)
	assert.Equal(6.0, m.At(1, 2))
	assert.Equal(2.0, m.At(0, 1))

	_, err = ReadMatrix("2 2\n1 2 3")
	assert.Error(err)
	_, err = ReadMatrix("1 1\n1 2")
	assert.Error(err)
	_, err = ReadMatrix("0 1")
	assert.Error(err)
	_, err = ReadMatrix("x 1")
	assert.Error(err)
	_, err = ReadMatrix("1 2\n3 NA")
	assert.True(errors.Is(err, ErrDataValidation))
}

func TestFieldReader(t *testing.T) {
	assert := assert.New(t)

	fr := newFieldReader("  3 \n 1.5\tNA inf 0 word")
	i, err := fr.readDim()
	assert.NoError(err)
	assert.Equal(3, i)
	f, err := fr.readValue()
	assert.NoError(err)
	assert.Equal(1.5, f)
	assert.Equal(4, fr.remaining())

	_, err = fr.readValue()
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = fr.readValue()
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = fr.readDim()
	assert.True(errors.Is(err, ErrDataValidation))
	_, err = fr.readValue()
	assert.Error(err)
	_, err = fr.next()
	assert.Equal(io.EOF, err)
}
