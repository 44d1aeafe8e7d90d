package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/leadscope/internal/domain/lead"
)

// DefaultLeadTopic receives one event per scored lead.
const DefaultLeadTopic = "leadscope.leads.scored"

// EventTypeLeadScored identifies lead events in the envelope and header.
const EventTypeLeadScored = "lead.scored"

// SchemaVersion is bumped on incompatible payload changes.
const SchemaVersion = "1"

// Header keys set on every message.
const (
	HeaderEventType     = "event-type"
	HeaderSchemaVersion = "schema-version"
	HeaderAsOf          = "as-of"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// LeadScoredPayload is the body of a lead.scored event.
type LeadScoredPayload struct {
	AsOf string     `json:"as_of"`
	Lead *lead.Lead `json:"lead"`
}

var eventNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("leadscope.event"))

// eventID is stable for a lead and reference date, so a rerun republishes
// the same ids and consumers can deduplicate.
func eventID(leadID string, asOf time.Time) string {
	return uuid.NewSHA1(eventNamespace, []byte(leadID+"@"+asOf.Format("2006-01-02"))).String()
}

// NewLeadScoredEnvelope wraps l for publication.
func NewLeadScoredEnvelope(l *lead.Lead, asOf, now time.Time) (*EventEnvelope, error) {
	payload, err := json.Marshal(LeadScoredPayload{AsOf: asOf.Format("2006-01-02"), Lead: l})
	if err != nil {
		return nil, err
	}
	return &EventEnvelope{
		EventID:       eventID(l.ID, asOf),
		EventType:     EventTypeLeadScored,
		Source:        "leadscope",
		Timestamp:     now.UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	}, nil
}
