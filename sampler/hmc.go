package sampler

import (
	"math"
)

// point is a position in unconstrained space with its density and gradient
type point struct {
	theta []float64
	lp    float64
	grad  []float64
}

func finitePoint(lp float64, grad []float64) bool {
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		return false
	}
	for _, g := range grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return false
		}
	}
	return true
}

// transition is the outcome of one HMC iteration. next is the proposal when
// accepted and the starting point otherwise.
type transition struct {
	next       point
	lp         float64
	acceptProb float64
	steps      int
	accepted   bool
	divergent  bool
	nonFinite  bool
}

func kinetic(p, invMass []float64) float64 {
	var k float64
	for i, pi := range p {
		k += 0.5 * invMass[i] * pi * pi
	}
	return k
}

// step runs one leapfrog trajectory from cur and applies the Metropolis
// correction. Only errors from the target are returned; numerical trouble
// is reported in the transition.
func (s *Sampler) step(cur point, eps float64, invMass []float64) (transition, error) {
	dim := len(cur.theta)

	p := make([]float64, dim)
	for i := range p {
		p[i] = s.gen.NormFloat64() / math.Sqrt(invMass[i])
	}
	h0 := -cur.lp + kinetic(p, invMass)

	steps := s.cfg.MinSteps
	if s.cfg.MaxSteps > s.cfg.MinSteps {
		steps += s.gen.Intn(s.cfg.MaxSteps - s.cfg.MinSteps + 1)
	}
	u := s.gen.Float64()

	theta := append([]float64(nil), cur.theta...)
	grad := cur.grad
	lp := cur.lp
	finite := true
	for l := 0; l < steps; l++ {
		for i := range p {
			p[i] += 0.5 * eps * grad[i]
			theta[i] += eps * invMass[i] * p[i]
		}

		var err error
		lp, grad, err = s.target.LogDensity(theta)
		if err != nil {
			return transition{}, err
		}
		if !finitePoint(lp, grad) {
			finite = false
			break
		}

		for i := range p {
			p[i] += 0.5 * eps * grad[i]
		}
	}

	tr := transition{next: cur, lp: cur.lp, steps: steps}
	if !finite {
		tr.divergent = true
		tr.nonFinite = true
		return tr, nil
	}

	dH := -lp + kinetic(p, invMass) - h0
	if math.IsNaN(dH) || dH > s.cfg.MaxEnergyError {
		tr.divergent = true
		return tr, nil
	}

	tr.acceptProb = math.Min(1, math.Exp(-dH))
	if u < tr.acceptProb {
		tr.accepted = true
		tr.next = point{theta: theta, lp: lp, grad: grad}
		tr.lp = lp
	}
	return tr, nil
}
