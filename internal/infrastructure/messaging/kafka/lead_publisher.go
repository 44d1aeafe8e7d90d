package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// LeadPublisher emits one lead.scored event per lead, keyed by lead id so all
// events for a lead land on the same partition.
type LeadPublisher struct {
	producer *Producer
	topic    string
	logger   logging.Logger
	now      func() time.Time
}

// NewLeadPublisher publishes to topic, or DefaultLeadTopic when empty.
func NewLeadPublisher(producer *Producer, topic string, logger logging.Logger) *LeadPublisher {
	if topic == "" {
		topic = DefaultLeadTopic
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LeadPublisher{producer: producer, topic: topic, logger: logger.Named("lead_publisher"), now: time.Now}
}

// Topic returns the destination topic.
func (p *LeadPublisher) Topic() string { return p.topic }

// PublishLeads encodes and writes every lead.  An empty slice is a no-op.
func (p *LeadPublisher) PublishLeads(ctx context.Context, asOf time.Time, leads []*lead.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	now := p.now()
	asOfText := asOf.Format("2006-01-02")
	msgs := make([]kafka.Message, 0, len(leads))
	for _, l := range leads {
		env, err := NewLeadScoredEnvelope(l, asOf, now)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode lead event").WithDetail(l.ID)
		}
		value, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode lead event").WithDetail(l.ID)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(l.ID),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(EventTypeLeadScored)},
				{Key: HeaderSchemaVersion, Value: []byte(SchemaVersion)},
				{Key: HeaderAsOf, Value: []byte(asOfText)},
			},
		})
	}
	if err := p.producer.Publish(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Info("leads published", logging.String("topic", p.topic), logging.Int("count", len(msgs)))
	return nil
}
