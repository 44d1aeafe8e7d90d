// Package lead defines the scored sales signal produced by the pipeline.
package lead

import (
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/leadscope/internal/domain/installbase"
)

// Type is the closed set of lead kinds.
type Type string

const (
	TypeCoverageRenewal Type = "coverage-renewal"
	TypeHardwareRefresh Type = "hardware-refresh"
	TypeServiceGap      Type = "service-gap"
)

// Types lists every lead type in detection order.
var Types = []Type{TypeCoverageRenewal, TypeHardwareRefresh, TypeServiceGap}

// IsValid reports whether t is one of the known lead types.
func (t Type) IsValid() bool {
	switch t {
	case TypeCoverageRenewal, TypeHardwareRefresh, TypeServiceGap:
		return true
	}
	return false
}

// Breakdown holds the four weighted sub-scores behind a lead's score.
type Breakdown struct {
	Urgency      float64 `json:"urgency"`
	AccountSize  float64 `json:"account_size"`
	Engagement   float64 `json:"engagement"`
	StrategicFit float64 `json:"strategic_fit"`
}

// Lead is a generated opportunity signal.  The detector creates it; only
// Score, Priority and Breakdown are written afterwards, by the scorer.
type Lead struct {
	ID            string                `json:"id"`
	Type          Type                  `json:"type"`
	AccountID     string                `json:"account_id"`
	AssetID       string                `json:"asset_id,omitempty"`
	ProjectID     string                `json:"project_id,omitempty"`
	ProductFamily string                `json:"product_family,omitempty"`
	RiskLevel     installbase.RiskLevel `json:"risk_level,omitempty"`
	UrgencyDays   int                   `json:"urgency_days"`
	Justification string                `json:"justification"`

	Score     float64   `json:"score"`
	Priority  Priority  `json:"priority,omitempty"`
	Breakdown Breakdown `json:"breakdown"`
}

var leadNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("leadscope.lead"))

// NewID derives the stable id of the lead of type t raised on subject.
func NewID(t Type, subjectID string) string {
	id := uuid.NewSHA1(leadNamespace, []byte(string(t)+"\x1f"+subjectID))
	return "LD-" + strings.ReplaceAll(id.String(), "-", "")[:16]
}

// ApplyScore records the scorer's output on the lead.
func (l *Lead) ApplyScore(score float64, priority Priority, b Breakdown) {
	l.Score = score
	l.Priority = priority
	l.Breakdown = b
}

// SubjectID returns the asset id, or the project id for project leads.
func (l *Lead) SubjectID() string {
	if l.AssetID != "" {
		return l.AssetID
	}
	return l.ProjectID
}
