package memory

import "math"

// RateParams shapes the learning rate of the confidence update.
type RateParams struct {
	BaseRate     float64 `koanf:"base_rate"`
	Acceleration float64 `koanf:"acceleration"`
	Horizon      int64   `koanf:"horizon"`
	MaxRate      float64 `koanf:"max_rate"`
}

// DefaultRateParams returns the default learning-rate curve.
func DefaultRateParams() RateParams {
	return RateParams{
		BaseRate:     0.01,
		Acceleration: 100,
		Horizon:      100,
		MaxRate:      0.5,
	}
}

// Rate returns the learning rate after n cumulative applications:
//
//	rate(n) = min(max_rate, base_rate * acceleration^(min(n, horizon)/horizon))
//
// It grows with n and stops growing at the horizon.
func (p RateParams) Rate(n int64) float64 {
	if n < 0 {
		n = 0
	}
	horizon := p.Horizon
	if horizon <= 0 {
		horizon = 1
	}
	if n > horizon {
		n = horizon
	}
	rate := p.BaseRate * math.Pow(p.Acceleration, float64(n)/float64(horizon))
	return math.Min(p.MaxRate, rate)
}

// Reinforce applies the saturating update
//
//	confidence' = confidence + rate(n) * (1 - confidence)
//
// where n is the record's frequency after the application.
func (p RateParams) Reinforce(confidence float64, n int64) float64 {
	c := clamp01(confidence)
	return clamp01(c + p.Rate(n)*(1-c))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
