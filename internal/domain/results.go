package domain

// Performance is the annualized return and volatility of a set of weights.
type Performance struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
}

// ReturnPct returns the expected return in percent.
func (p Performance) ReturnPct() float64 { return p.ExpectedReturn * 100 }

// VolatilityPct returns the volatility in percent.
func (p Performance) VolatilityPct() float64 { return p.Volatility * 100 }

// PointStatus qualifies a frontier grid point.
type PointStatus string

const (
	// PointConverged means the solver met every constraint.
	PointConverged PointStatus = "converged"
	// PointLowConfidence means the solver stopped with a constraint residual above tolerance.
	PointLowConfidence PointStatus = "low_confidence"
	// PointInfeasible means the target lies outside the attainable return range.
	PointInfeasible PointStatus = "infeasible"
)

// FrontierPoint is one grid point of an efficient frontier sweep.
type FrontierPoint struct {
	TargetReturn float64     `json:"target_return"`
	Volatility   float64     `json:"volatility"`
	Return       float64     `json:"return"`
	Weights      Weights     `json:"weights,omitempty"`
	Status       PointStatus `json:"status"`
}

// FrontierCurve is the ordered result of a sweep, by non-decreasing target.
type FrontierCurve struct {
	Points []FrontierPoint `json:"points"`
}

// Volatilities returns the volatility of every point in grid order.
func (c FrontierCurve) Volatilities() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Volatility
	}
	return out
}

// Converged counts the points whose solve met every constraint.
func (c FrontierCurve) Converged() int {
	n := 0
	for _, p := range c.Points {
		if p.Status == PointConverged {
			n++
		}
	}
	return n
}
