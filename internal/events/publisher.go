package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// TypeAssessmentRecorded is emitted once a record is durably stored.
const TypeAssessmentRecorded = "assessment.recorded"

// AssessmentEvent is the payload sent to downstream consumers.
type AssessmentEvent struct {
	Type          string    `json:"type"`
	ID            string    `json:"id"`
	FarmerID      string    `json:"farmer_id"`
	FinancialRisk float64   `json:"financial_risk"`
	TechnicalRisk float64   `json:"technical_risk"`
	ResultTime    string    `json:"result_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers assessment events.
type Publisher interface {
	Publish(ctx context.Context, event AssessmentEvent) error
	Close() error
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, AssessmentEvent) error { return nil }
func (Noop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by farmer.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic required")
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

// Publish sends one event and waits for broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event AssessmentEvent) error {
	if event.Type == "" {
		event.Type = TypeAssessmentRecorded
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal assessment event: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(event.FarmerID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
