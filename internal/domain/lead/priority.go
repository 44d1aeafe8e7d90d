package lead

import (
	"fmt"

	"github.com/turtacn/leadscope/pkg/errors"
)

// Priority is the tier derived from a lead's score.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank orders priorities from most to least urgent, for sorting.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// PriorityBands are the lower score bounds of each tier.  Valid bands
// partition [0,100]: Low is 0 and each bound is strictly above the previous.
type PriorityBands struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

// DefaultPriorityBands returns 75 / 60 / 40 / 0.
func DefaultPriorityBands() PriorityBands {
	return PriorityBands{Critical: 75, High: 60, Medium: 40, Low: 0}
}

// Validate reports an ErrCodeConfigInvariant error when the bands leave a gap
// or overlap.
func (b PriorityBands) Validate() error {
	if b.Low != 0 {
		return errors.ConfigInvariant("priority thresholds must start at 0").
			WithDetail(fmt.Sprintf("low=%g", b.Low))
	}
	if !(b.Low < b.Medium && b.Medium < b.High && b.High < b.Critical) {
		return errors.ConfigInvariant("priority thresholds must be strictly increasing").
			WithDetail(fmt.Sprintf("low=%g medium=%g high=%g critical=%g", b.Low, b.Medium, b.High, b.Critical))
	}
	if b.Critical > 100 {
		return errors.ConfigInvariant("priority thresholds must lie within [0,100]").
			WithDetail(fmt.Sprintf("critical=%g", b.Critical))
	}
	return nil
}

// Tier returns the priority for a score.  Scores outside [0,100] are clamped
// first, so every score maps to exactly one tier.
func (b PriorityBands) Tier(score float64) Priority {
	score = Clamp(score)
	switch {
	case score >= b.Critical:
		return PriorityCritical
	case score >= b.High:
		return PriorityHigh
	case score >= b.Medium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Clamp limits a score to [0,100].
func Clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
