package dist

import (
	"math"

	"github.com/CraigKelly/greta/autodiff"
)

// standardise is (x - loc) / scale
func standardise(t *autodiff.Tape, x, loc, scale *autodiff.Node) *autodiff.Node {
	return t.Div(t.Sub(x, loc), scale)
}

func normalLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	z := standardise(t, x, p[0], p[1])
	lp := t.Sub(t.Scale(t.Square(z), -0.5), t.Log(p[1]))
	return t.Shift(lp, -autodiff.LogSqrt2Pi)
}

func lognormalLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	lx := t.Log(x)
	return t.Sub(normalLogProb(t, lx, p), lx)
}

func exponentialLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	return t.Sub(t.Log(p[0]), t.Mul(p[0], x))
}

func uniformLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	return t.Neg(t.Log(t.Sub(p[1], p[0])))
}

func gammaLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	k, rate := p[0], p[1]
	lp := t.Sub(t.Mul(k, t.Log(rate)), t.Lgamma(k))
	lp = t.Add(lp, t.Mul(t.Shift(k, -1), t.Log(x)))
	return t.Sub(lp, t.Mul(rate, x))
}

func lbeta(t *autodiff.Tape, a, b *autodiff.Node) *autodiff.Node {
	return t.Sub(t.Add(t.Lgamma(a), t.Lgamma(b)), t.Lgamma(t.Add(a, b)))
}

func betaLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	a, b := p[0], p[1]
	lp := t.Mul(t.Shift(a, -1), t.Log(x))
	lp = t.Add(lp, t.Mul(t.Shift(b, -1), t.Log1p(t.Neg(x))))
	return t.Sub(lp, lbeta(t, a, b))
}

func studentLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	df, mu, sigma := p[0], p[1], p[2]
	z := standardise(t, x, mu, sigma)
	half := t.Scale(t.Shift(df, 1), 0.5)

	lp := t.Sub(t.Lgamma(half), t.Lgamma(t.Scale(df, 0.5)))
	lp = t.Sub(lp, t.Scale(t.Log(t.Scale(df, math.Pi)), 0.5))
	lp = t.Sub(lp, t.Log(sigma))
	return t.Sub(lp, t.Mul(half, t.Log1p(t.Div(t.Square(z), df))))
}

func cauchyLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	z := standardise(t, x, p[0], p[1])
	lp := t.Neg(t.Add(t.Log(p[1]), t.Log1p(t.Square(z))))
	return t.Shift(lp, -math.Log(math.Pi))
}

func logisticLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	z := standardise(t, x, p[0], p[1])
	lp := t.Neg(t.Add(z, t.Log(p[1])))
	return t.Sub(lp, t.Scale(t.Log1pExp(t.Neg(z)), 2))
}

func poissonLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	lambda := p[0]
	lp := t.Sub(t.Mul(x, t.Log(lambda)), lambda)
	return t.Sub(lp, t.Lgamma(t.Shift(x, 1)))
}

func bernoulliLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	prob := p[0]
	one := t.Mul(x, t.Log(prob))
	zero := t.Mul(t.Shift(t.Neg(x), 1), t.Log1p(t.Neg(prob)))
	return t.Add(one, zero)
}

func binomialLogProb(t *autodiff.Tape, x *autodiff.Node, p []*autodiff.Node) *autodiff.Node {
	n, prob := p[0], p[1]
	rest := t.Sub(n, x)
	lchoose := t.Sub(t.Lgamma(t.Shift(n, 1)), t.Add(t.Lgamma(t.Shift(x, 1)), t.Lgamma(t.Shift(rest, 1))))
	lp := t.Add(lchoose, t.Mul(x, t.Log(prob)))
	return t.Add(lp, t.Mul(rest, t.Log1p(t.Neg(prob))))
}
