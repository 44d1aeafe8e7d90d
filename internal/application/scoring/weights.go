package scoring

import (
	"fmt"
	"math"

	"github.com/turtacn/leadscope/pkg/errors"
)

// weightTolerance bounds the allowed drift of the weight sum from 1.0.
const weightTolerance = 1e-6

// Weights are the factor weights of the lead score.  They must be
// non-negative and sum to 1.0.
type Weights struct {
	Urgency      float64 `json:"urgency"`
	AccountSize  float64 `json:"account_size"`
	Engagement   float64 `json:"engagement"`
	StrategicFit float64 `json:"strategic_fit"`
}

// DefaultWeights returns 0.35 / 0.30 / 0.20 / 0.15.
func DefaultWeights() Weights {
	return Weights{Urgency: 0.35, AccountSize: 0.30, Engagement: 0.20, StrategicFit: 0.15}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Urgency + w.AccountSize + w.Engagement + w.StrategicFit
}

// Validate reports an ErrCodeConfigInvariant error for negative weights or a
// sum other than 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"urgency":       w.Urgency,
		"account_size":  w.AccountSize,
		"engagement":    w.Engagement,
		"strategic_fit": w.StrategicFit,
	} {
		if v < 0 || math.IsNaN(v) {
			return errors.ConfigInvariant("scoring weights must be non-negative").
				WithDetail(fmt.Sprintf("%s=%g", name, v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return errors.ConfigInvariant("scoring weights must sum to 1.0").
			WithDetail(fmt.Sprintf("sum=%.6f", sum))
	}
	return nil
}

// UrgencyBands are the day thresholds of the urgency sub-score.
type UrgencyBands struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Elevated int `json:"elevated"`
}

// DefaultUrgencyBands returns 1825 / 1095 / 365 days.
func DefaultUrgencyBands() UrgencyBands {
	return UrgencyBands{Critical: 1825, High: 1095, Elevated: 365}
}

// Validate requires strictly decreasing positive thresholds.
func (b UrgencyBands) Validate() error {
	if !(b.Critical > b.High && b.High > b.Elevated && b.Elevated > 0) {
		return errors.ConfigInvariant("urgency bands must be positive and strictly decreasing").
			WithDetail(fmt.Sprintf("critical=%d high=%d elevated=%d", b.Critical, b.High, b.Elevated))
	}
	return nil
}
