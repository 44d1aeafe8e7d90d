// Package recommendation defines ranked catalog services attached to an
// asset, project or lead.
package recommendation

import (
	"context"
)

// MatchLayer names the strategy that produced a recommendation.
type MatchLayer string

const (
	LayerExactProduct MatchLayer = "exact_product"
	LayerCategory     MatchLayer = "category"
	LayerFallback     MatchLayer = "fallback"
)

// Urgency labels a recommendation as time sensitive.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyPlanned   Urgency = "planned"
	UrgencyStandard  Urgency = "standard"
)

// Recommendation is one ranked service for a subject.  SKUCode is empty when
// the catalog carries none.
type Recommendation struct {
	SubjectID   string     `json:"subject_id"`
	LeadID      string     `json:"lead_id,omitempty"`
	Rank        int        `json:"rank"`
	ServiceName string     `json:"service_name"`
	SKUCode     string     `json:"sku_code,omitempty"`
	Confidence  float64    `json:"confidence"`
	Urgency     Urgency    `json:"urgency"`
	MatchLayer  MatchLayer `json:"match_layer"`
}

// Repository stores the derived recommendation set.
type Repository interface {
	ReplaceAll(ctx context.Context, recs []Recommendation) error
	ListBySubject(ctx context.Context, subjectID string) ([]Recommendation, error)
}
