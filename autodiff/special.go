package autodiff

import "math"

// LogSqrt2Pi is log(sqrt(2*pi))
var LogSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Lgamma is log|Gamma(x)|
func Lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// Digamma is the derivative of Lgamma. We use the recurrence to push x above
// 6 and then the asymptotic series.
func Digamma(x float64) float64 {
	if x <= 0 && x == math.Floor(x) {
		return math.NaN()
	}
	if x < 0 {
		// reflection
		return Digamma(1-x) - math.Pi/math.Tan(math.Pi*x)
	}

	var r float64
	for x < 6 {
		r -= 1 / x
		x++
	}
	f := 1 / (x * x)
	r += math.Log(x) - 0.5/x - f*(1.0/12-f*(1.0/120-f*(1.0/252-f*(1.0/240-f/132))))
	return r
}

// Ilogit is the logistic function without overflow for large |x|
func Ilogit(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit is the inverse of Ilogit
func Logit(p float64) float64 {
	return math.Log(p) - math.Log1p(-p)
}

// Log1pExp is log(1 + e^x)
func Log1pExp(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// Log1mExp is log(1 - e^x), defined for x < 0
func Log1mExp(x float64) float64 {
	if x > -math.Ln2 {
		return math.Log(-math.Expm1(x))
	}
	return math.Log1p(-math.Exp(x))
}

func logNormalPDF(z float64) float64 {
	return -0.5*z*z - LogSqrt2Pi
}

// LogNormalCDF is log(Phi(z)) for the standard normal
func LogNormalCDF(z float64) float64 {
	if z > -30 {
		return math.Log(0.5 * math.Erfc(-z/math.Sqrt2))
	}
	// Mills ratio tail
	return logNormalPDF(z) - math.Log(-z) + math.Log1p(-1/(z*z))
}

// LogNormalCDFDiff is log(Phi(b) - Phi(a)) for a < b
func LogNormalCDFDiff(a, b float64) float64 {
	if a >= b {
		return math.Inf(-1)
	}
	if a > 0 {
		// both in the upper tail: use symmetry so the difference stays accurate
		a, b = -b, -a
	}
	lb := LogNormalCDF(b)
	if math.IsInf(a, -1) {
		return lb
	}
	return lb + Log1mExp(LogNormalCDF(a)-lb)
}
