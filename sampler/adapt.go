package sampler

import (
	"math"
)

// stepSizeAdapter is Nesterov dual averaging of log(step size) toward a
// target acceptance probability (Hoffman and Gelman 2014, algorithm 5)
type stepSizeAdapter struct {
	target float64
	gamma  float64
	t0     float64
	kappa  float64

	mu        float64
	hBar      float64
	logEps    float64
	logEpsBar float64
	count     int
}

func newStepSizeAdapter(eps, target float64) *stepSizeAdapter {
	a := &stepSizeAdapter{
		target: target,
		gamma:  0.05,
		t0:     10,
		kappa:  0.75,
	}
	a.restart(eps)
	return a
}

// restart forgets history and centres the search on 10 * eps
func (a *stepSizeAdapter) restart(eps float64) {
	a.mu = math.Log(10 * eps)
	a.hBar = 0
	a.logEps = math.Log(eps)
	a.logEpsBar = 0
	a.count = 0
}

// update takes the acceptance probability of the last transition and
// returns the step size for the next one
func (a *stepSizeAdapter) update(acceptProb float64) float64 {
	if math.IsNaN(acceptProb) {
		acceptProb = 0
	}
	a.count++
	t := float64(a.count)

	eta := 1 / (t + a.t0)
	a.hBar = (1-eta)*a.hBar + eta*(a.target-acceptProb)
	a.logEps = a.mu - math.Sqrt(t)/a.gamma*a.hBar

	w := math.Pow(t, -a.kappa)
	a.logEpsBar = w*a.logEps + (1-w)*a.logEpsBar
	return math.Exp(a.logEps)
}

// final is the averaged step size used once adaptation stops
func (a *stepSizeAdapter) final() float64 {
	if a.count < 1 {
		return math.Exp(a.logEps)
	}
	return math.Exp(a.logEpsBar)
}

// varianceEstimator is Welford's running variance per coordinate
type varianceEstimator struct {
	n    int
	mean []float64
	m2   []float64
}

func newVarianceEstimator(dim int) *varianceEstimator {
	return &varianceEstimator{
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

func (v *varianceEstimator) add(x []float64) {
	v.n++
	for i, xi := range x {
		delta := xi - v.mean[i]
		v.mean[i] += delta / float64(v.n)
		v.m2[i] += delta * (xi - v.mean[i])
	}
}

// variance shrinks the sample variance toward 1e-3 the way Stan does, so a
// short window cannot produce a degenerate mass matrix
func (v *varianceEstimator) variance() []float64 {
	out := make([]float64, len(v.mean))
	if v.n < 2 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	n := float64(v.n)
	for i := range out {
		sample := v.m2[i] / (n - 1)
		out[i] = (n/(n+5))*sample + 1e-3*(5/(n+5))
	}
	return out
}

// massWindow is the half-open range of warmup iterations (0-based) whose
// draws estimate the inverse mass diagonal
func massWindow(warmup int) (start, end int) {
	return warmup / 4, 3 * warmup / 4
}
