package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/leadscope/pkg/errors"
)

type mockKafkaWriter struct {
	batches   [][]kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.batches = append(m.batches, append([]kafka.Message(nil), msgs...))
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func msg(topic, key, value string) kafka.Message {
	return kafka.Message{Topic: topic, Key: []byte(key), Value: []byte(value)}
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"localhost:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
}

func TestNewProducer_UnsupportedSASL(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"b:9092"}, SASLMechanism: "GSSAPI"}, nil)
	assert.Nil(t, p)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestNewProducer_Defaults(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"b:9092"}, SASLMechanism: "PLAIN", Acks: "all", CompressionCodec: "zstd"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, p.config.BatchSize)
	assert.Equal(t, 3, p.config.MaxRetries)

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.Equal(t, 4, w.MaxAttempts)
	assert.NoError(t, p.Close())
}

func TestPublish_Batches(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, ProducerConfig{BatchSize: 2}, nil)

	err := p.Publish(context.Background(), msg("t", "a", "1"), msg("t", "b", "2"), msg("t", "c", "3"))
	require.NoError(t, err)
	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[1], 1)
	assert.EqualValues(t, 3, p.Sent())
	assert.EqualValues(t, 3, p.metrics.BytesSent.Load())
}

func TestPublish_Validation(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, ProducerConfig{MaxMessageBytes: 4}, nil)
	ctx := context.Background()

	assert.True(t, apperrors.IsCode(p.Publish(ctx, msg("", "k", "v")), apperrors.ErrCodeValidation))
	assert.True(t, apperrors.IsCode(p.Publish(ctx, msg("t", "k", strings.Repeat("x", 5))), apperrors.ErrCodeValidation))
	assert.Empty(t, w.batches)
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return errors.New("leader not available")
	}}
	p := NewProducerWithWriter(w, ProducerConfig{}, nil)

	err := p.Publish(context.Background(), msg("t", "a", "1"), msg("t", "b", "2"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.EqualValues(t, 2, p.Failed())
	assert.EqualValues(t, 0, p.Sent())
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, ProducerConfig{}, nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), msg("t", "a", "1")), ErrProducerClosed)
}
