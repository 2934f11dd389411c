package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepSizeAdapter(t *testing.T) {
	assert := assert.New(t)

	// Always accepting means the step is too small
	a := newStepSizeAdapter(0.1, 0.65)
	assert.InDelta(0.1, a.final(), 1e-12)
	var eps float64
	for i := 0; i < 50; i++ {
		eps = a.update(1)
	}
	assert.True(eps > 0.1)
	assert.True(a.final() > 0.1)

	// Never accepting shrinks it
	a = newStepSizeAdapter(0.1, 0.65)
	for i := 0; i < 50; i++ {
		eps = a.update(0)
	}
	assert.True(eps < 0.1)
	assert.True(a.final() < 0.1)

	// NaN counts as a rejection
	b := newStepSizeAdapter(0.1, 0.65)
	c := newStepSizeAdapter(0.1, 0.65)
	assert.Equal(b.update(0), c.update(math.NaN()))

	// Restart forgets the history
	a.restart(0.2)
	assert.Equal(0, a.count)
	assert.InDelta(0.2, a.final(), 1e-12)
}

func TestStepSizeAdapterSettles(t *testing.T) {
	assert := assert.New(t)

	// Acceptance falls off with step size, hitting 0.65 at eps = 0.5
	accept := func(eps float64) float64 {
		return math.Exp(-eps * -math.Log(0.65) / 0.5)
	}
	a := newStepSizeAdapter(0.1, 0.65)
	eps := 0.1
	for i := 0; i < 2000; i++ {
		eps = a.update(accept(eps))
	}
	assert.InDelta(0.5, a.final(), 0.1)
}

func TestVarianceEstimator(t *testing.T) {
	assert := assert.New(t)

	v := newVarianceEstimator(2)
	assert.Equal([]float64{1, 1}, v.variance())

	v.add([]float64{1, 10})
	assert.Equal([]float64{1, 1}, v.variance())

	for _, x := range [][]float64{{2, 20}, {3, 30}, {4, 40}} {
		v.add(x)
	}
	assert.Equal(4, v.n)
	assert.InDeltaSlice([]float64{2.5, 25}, v.mean, 1e-12)

	// Sample variances are 5/3 and 500/3 before regularization
	n := 4.0
	want := []float64{
		(n/(n+5))*(5.0/3.0) + 1e-3*(5/(n+5)),
		(n/(n+5))*(500.0/3.0) + 1e-3*(5/(n+5)),
	}
	assert.InDeltaSlice(want, v.variance(), 1e-12)
}

func TestMassWindow(t *testing.T) {
	assert := assert.New(t)

	start, end := massWindow(100)
	assert.Equal(25, start)
	assert.Equal(75, end)

	start, end = massWindow(0)
	assert.Equal(0, start)
	assert.Equal(0, end)

	start, end = massWindow(3)
	assert.Equal(0, start)
	assert.Equal(2, end)
}
