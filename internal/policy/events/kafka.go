package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"frost/pkg/platform/codec"
)

const (
	// DefaultTopic carries every policy store event.
	DefaultTopic = "frost.policy-events"

	contentTypeCBOR = "application/cbor"
)

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes CBOR-encoded events to a topic, keyed by device id so
// one device's events stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	record, err := p.record(event)
	if err != nil {
		return err
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) record(event Event) (*kgo.Record, error) {
	value, err := codec.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.DeviceID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte(contentTypeCBOR)},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID)},
		},
	}, nil
}

// Decode parses a record value written by KafkaPublisher.
func Decode(value []byte) (Event, error) {
	var event Event
	if err := codec.Unmarshal(value, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
