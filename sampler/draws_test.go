package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraws() *Draws {
	d := newDraws("run", []string{"x", "y"}, 4)
	d.append([]float64{1, 10}, -1, 0.9, true, false)
	d.append([]float64{2, 20}, -2, 0.5, true, false)
	d.append([]float64{2, 20}, -2, 0.1, false, false)
	d.append([]float64{3, 30}, -3, 0, false, true)
	return d
}

func TestDrawsAccessors(t *testing.T) {
	assert := assert.New(t)
	d := sampleDraws()

	assert.Equal(4, d.Len())
	assert.Equal(1, d.Divergences())
	assert.Equal(0.5, d.AcceptRate())
	assert.InDeltaSlice([]float64{2, 20}, d.Mean(), 1e-12)

	col, ok := d.Column("y")
	assert.True(ok)
	assert.Equal([]float64{10, 20, 20, 30}, col)
	_, ok = d.Column("z")
	assert.False(ok)

	empty := newDraws("run", []string{"x"}, 0)
	assert.True(math.IsNaN(empty.Mean()[0]))
	assert.Equal(0.0, empty.AcceptRate())
	assert.Nil(empty.Summary())
}

func TestDrawsPrefix(t *testing.T) {
	assert := assert.New(t)
	d := sampleDraws()
	d.InvMass = []float64{1, 2}

	p := d.prefix(2)
	assert.Equal(2, p.Len())
	assert.Equal([]float64{-1, -2}, p.LogDensity)
	assert.Equal("run", p.RunID)

	// Later appends and edits to the original do not leak into the copy
	d.append([]float64{4, 40}, -4, 1, true, false)
	d.InvMass[0] = 9
	d.Names[0] = "changed"
	assert.Equal(2, p.Len())
	assert.Equal([]float64{1, 2}, p.InvMass)
	assert.Equal("x", p.Names[0])
}

func TestDrawsSummary(t *testing.T) {
	assert := assert.New(t)
	d := sampleDraws()

	s := d.Summary()
	require.Len(t, s, 2)
	assert.Equal("x", s[0].Name)
	assert.InDelta(2.0, s[0].Mean, 1e-12)
	assert.InDelta(math.Sqrt(2.0/3.0), s[0].SD, 1e-12)
	assert.InDelta(2.0, s[0].Median, 1e-12)
	assert.InDelta(1.075, s[0].Lower, 1e-12)
	assert.InDelta(2.925, s[0].Upper, 1e-12)
	assert.InDelta(20.0, s[1].Median, 1e-12)

	// Summary sorts a copy
	col, _ := d.Column("x")
	assert.Equal([]float64{1, 2, 2, 3}, col)
}

func TestQuantile(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(5.0, quantile([]float64{5}, 0.3))
	data := []float64{0, 10, 20, 30, 40}
	assert.InDelta(0.0, quantile(data, 0), 1e-12)
	assert.InDelta(20.0, quantile(data, 0.5), 1e-12)
	assert.InDelta(5.0, quantile(data, 0.125), 1e-12)
	assert.InDelta(40.0, quantile(data, 1), 1e-12)
}
