package sampler

import (
	"math"
	"sort"
)

// Draws is a chain of sampling iterations. Values hold one row per
// iteration on the natural (constrained) scale, in ParamNames order. A
// rejected proposal repeats the previous row.
type Draws struct {
	RunID  string
	Names  []string
	Values [][]float64

	LogDensity []float64
	AcceptProb []float64
	Accepted   []bool
	Divergent  []bool

	StepSize    float64   // step size used for every sampling iteration
	InvMass     []float64 // inverse mass diagonal used for sampling
	WarmupDrift float64   // late warmup log density drift, 0 if not measured
}

func newDraws(runID string, names []string, capacity int) *Draws {
	return &Draws{
		RunID:      runID,
		Names:      append([]string(nil), names...),
		Values:     make([][]float64, 0, capacity),
		LogDensity: make([]float64, 0, capacity),
		AcceptProb: make([]float64, 0, capacity),
		Accepted:   make([]bool, 0, capacity),
		Divergent:  make([]bool, 0, capacity),
	}
}

func (d *Draws) append(x []float64, lp, acceptProb float64, accepted, divergent bool) {
	d.Values = append(d.Values, x)
	d.LogDensity = append(d.LogDensity, lp)
	d.AcceptProb = append(d.AcceptProb, acceptProb)
	d.Accepted = append(d.Accepted, accepted)
	d.Divergent = append(d.Divergent, divergent)
}

// prefix copies the first n iterations. Rows are shared since they are never
// modified after being appended.
func (d *Draws) prefix(n int) *Draws {
	cp := *d
	cp.Names = append([]string(nil), d.Names...)
	cp.InvMass = append([]float64(nil), d.InvMass...)
	cp.Values = append([][]float64(nil), d.Values[:n]...)
	cp.LogDensity = append([]float64(nil), d.LogDensity[:n]...)
	cp.AcceptProb = append([]float64(nil), d.AcceptProb[:n]...)
	cp.Accepted = append([]bool(nil), d.Accepted[:n]...)
	cp.Divergent = append([]bool(nil), d.Divergent[:n]...)
	return &cp
}

// Len is the number of iterations
func (d *Draws) Len() int {
	return len(d.Values)
}

// Column returns every draw of one parameter
func (d *Draws) Column(name string) ([]float64, bool) {
	for j, n := range d.Names {
		if n == name {
			col := make([]float64, len(d.Values))
			for i, row := range d.Values {
				col[i] = row[j]
			}
			return col, true
		}
	}
	return nil, false
}

// Mean is the per parameter sample mean (NaN when there are no draws)
func (d *Draws) Mean() []float64 {
	mean := make([]float64, len(d.Names))
	if len(d.Values) < 1 {
		for j := range mean {
			mean[j] = math.NaN()
		}
		return mean
	}
	for _, row := range d.Values {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(d.Values))
	}
	return mean
}

// Divergences counts divergent iterations
func (d *Draws) Divergences() int {
	n := 0
	for _, div := range d.Divergent {
		if div {
			n++
		}
	}
	return n
}

// AcceptRate is the fraction of accepted proposals
func (d *Draws) AcceptRate() float64 {
	if len(d.Accepted) < 1 {
		return 0
	}
	n := 0
	for _, a := range d.Accepted {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(d.Accepted))
}

// ParamSummary describes the marginal draws of one parameter
type ParamSummary struct {
	Name   string
	Mean   float64
	SD     float64
	Lower  float64 // 2.5% quantile
	Median float64
	Upper  float64 // 97.5% quantile
}

// Summary returns one ParamSummary per parameter, nil without draws
func (d *Draws) Summary() []ParamSummary {
	if len(d.Values) < 1 {
		return nil
	}
	out := make([]ParamSummary, len(d.Names))
	for j, name := range d.Names {
		col, _ := d.Column(name)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(len(col))

		var ss float64
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		sd := 0.0
		if len(col) > 1 {
			sd = math.Sqrt(ss / float64(len(col)-1))
		}

		sort.Float64s(col)
		out[j] = ParamSummary{
			Name:   name,
			Mean:   mean,
			SD:     sd,
			Lower:  quantile(col, 0.025),
			Median: quantile(col, 0.5),
			Upper:  quantile(col, 0.975),
		}
	}
	return out
}

// quantile interpolates linearly between order statistics of sorted data
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
