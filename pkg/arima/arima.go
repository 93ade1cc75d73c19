// Package arima fits ARIMA(p, d, q) models by conditional sum of squares
// and produces multi-step forecasts in a single call.
package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotFitted         = errors.New("arima: model is not fitted")
	ErrInsufficientData  = errors.New("arima: insufficient observations for order")
	ErrConstantSeries    = errors.New("arima: series is constant")
	ErrNonFinite         = errors.New("arima: series contains non-finite values")
	ErrNoConvergence     = errors.New("arima: optimizer did not converge")
	ErrDegenerateResults = errors.New("arima: fit produced non-finite results")
)

// Order holds the (p, d, q) orders.
type Order struct {
	P int
	D int
	Q int
}

func (o Order) String() string { return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q) }

// Option configures a Model.
type Option func(*Model)

// WithMaxIterations caps the optimizer's major iterations.
func WithMaxIterations(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxIter = n
		}
	}
}

// Model is an ARIMA model. A Model is not safe for concurrent use; build one
// per fit.
type Model struct {
	Order  Order
	AR     []float64
	MA     []float64
	Mean   float64 // only estimated when D == 0
	Sigma2 float64
	CSS    float64

	maxIter int
	levels  [][]float64 // levels[k] is the series differenced k times
	resid   []float64
	fitted  bool
}

// New creates an unfitted model.
func New(order Order, opts ...Option) *Model {
	m := &Model{
		Order:   order,
		AR:      make([]float64, order.P),
		MA:      make([]float64, order.Q),
		maxIter: 1000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MinObservations is the shortest series Fit accepts for the order.
func (o Order) MinObservations() int { return o.P + o.D + o.Q + 2 }

// Fit estimates AR and MA coefficients on values.
func (m *Model) Fit(values []float64) error {
	o := m.Order
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("arima: invalid order %s", o)
	}
	if len(values) < o.MinObservations() {
		return fmt.Errorf("%w: need %d, got %d", ErrInsufficientData, o.MinObservations(), len(values))
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	if floats.Max(values)-floats.Min(values) == 0 {
		return ErrConstantSeries
	}

	m.levels = make([][]float64, 0, o.D+1)
	cur := append([]float64(nil), values...)
	m.levels = append(m.levels, cur)
	for i := 0; i < o.D; i++ {
		cur = difference(cur)
		m.levels = append(m.levels, cur)
	}

	w := append([]float64(nil), cur...)
	m.Mean = 0
	if o.D == 0 {
		m.Mean = stat.Mean(w, nil)
		floats.AddConst(-m.Mean, w)
	}

	k := o.P + o.Q
	if k == 0 {
		m.resid = w
		m.CSS = floats.Dot(w, w)
		m.Sigma2 = m.CSS / float64(len(w))
		m.fitted = true
		return nil
	}

	x0 := m.initialGuess(w)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			ar, ma := m.unpack(x)
			css, _ := conditionalSS(w, ar, ma)
			return css
		},
	}
	settings := &optimize.Settings{
		MajorIterations: m.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	if result == nil || result.Status == optimize.Failure {
		return ErrNoConvergence
	}

	ar, ma := m.unpack(result.X)
	css, resid := conditionalSS(w, ar, ma)
	if math.IsNaN(css) || math.IsInf(css, 0) {
		return ErrDegenerateResults
	}
	copy(m.AR, ar)
	copy(m.MA, ma)
	m.CSS = css
	m.resid = resid
	if n := len(w) - o.P; n > 0 {
		m.Sigma2 = css / float64(n)
	}
	m.fitted = true
	return nil
}

// Forecast returns the next steps values on the original scale. A
// non-positive steps yields an empty forecast.
func (m *Model) Forecast(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return []float64{}, nil
	}

	p, q, d := m.Order.P, m.Order.Q, m.Order.D
	w := m.levels[d]
	n := len(w)

	ext := make([]float64, n+steps)
	for i, v := range w {
		ext[i] = v - m.Mean
	}
	res := make([]float64, n+steps)
	copy(res, m.resid)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := 0.0
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.AR[i] * ext[t-i-1]
		}
		for j := 0; j < q && t-j-1 >= 0; j++ {
			pred += m.MA[j] * res[t-j-1]
		}
		ext[t] = pred
	}

	out := make([]float64, steps)
	for i := range out {
		out[i] = ext[n+i] + m.Mean
	}
	// integrate from the deepest level back to the original scale
	for k := d - 1; k >= 0; k-- {
		last := m.levels[k][len(m.levels[k])-1]
		for i := range out {
			last += out[i]
			out[i] = last
		}
	}

	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrDegenerateResults
		}
	}
	return out, nil
}

// Residuals returns a copy of the in-sample residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.resid...)
}

// initialGuess seeds AR terms with the lag autocorrelations and MA terms with
// a small positive value, expressed in the unconstrained space.
func (m *Model) initialGuess(w []float64) []float64 {
	x := make([]float64, 0, m.Order.P+m.Order.Q)
	for i := 1; i <= m.Order.P; i++ {
		r := 0.0
		if len(w) > i+1 {
			r = stat.Correlation(w[:len(w)-i], w[i:], nil)
		}
		if math.IsNaN(r) {
			r = 0
		}
		x = append(x, math.Atanh(clamp(r, -0.9, 0.9)))
	}
	for j := 0; j < m.Order.Q; j++ {
		x = append(x, math.Atanh(0.1))
	}
	return x
}

// unpack maps unconstrained optimizer coordinates into (-1, 1).
func (m *Model) unpack(x []float64) (ar, ma []float64) {
	ar = make([]float64, m.Order.P)
	ma = make([]float64, m.Order.Q)
	for i := range ar {
		ar[i] = math.Tanh(x[i])
	}
	for j := range ma {
		ma[j] = math.Tanh(x[m.Order.P+j])
	}
	return ar, ma
}

// conditionalSS returns the sum of squared one-step errors, conditioning on
// the first p observations and zero pre-sample errors.
func conditionalSS(w, ar, ma []float64) (float64, []float64) {
	p, q := len(ar), len(ma)
	resid := make([]float64, len(w))
	css := 0.0
	for t := p; t < len(w); t++ {
		pred := 0.0
		for i := 0; i < p; i++ {
			pred += ar[i] * w[t-i-1]
		}
		for j := 0; j < q && t-j-1 >= 0; j++ {
			pred += ma[j] * resid[t-j-1]
		}
		resid[t] = w[t] - pred
		css += resid[t] * resid[t]
	}
	return css, resid
}

func difference(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
