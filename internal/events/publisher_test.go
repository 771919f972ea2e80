package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "aqua-risk.assessments"}

	err := p.Publish(context.Background(), AssessmentEvent{
		ID:            "abc",
		FarmerID:      "F001",
		FinancialRisk: 0.2,
		TechnicalRisk: 0.4,
		ResultTime:    "2025-01-02 03:04:05",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "F001", string(msg.Key))

	var decoded AssessmentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeAssessmentRecorded, decoded.Type)
	assert.Equal(t, 0.4, decoded.TechnicalRisk)
	assert.False(t, decoded.OccurredAt.IsZero())

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, TypeAssessmentRecorded, string(msg.Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, topic: "t"}
	err := p.Publish(context.Background(), AssessmentEvent{FarmerID: "F001"})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher([]string{" ", ""}, "topic")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, " ")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "aqua-risk.assessments")
	require.NoError(t, err)
	assert.Equal(t, "aqua-risk.assessments", p.topic)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), AssessmentEvent{}))
	assert.NoError(t, p.Close())
}
