package stream

import (
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"marketalerts/internal/logger"
	"marketalerts/internal/models"
)

// Producer mirrors normalized snapshots onto a Kafka topic for
// downstream consumers outside the alert pipeline.
type Producer struct {
	producer *kafka.Producer
	topic    string
}

func NewProducer(brokers, topic string) (*Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return nil, err
	}

	p := &Producer{producer: producer, topic: topic}
	go p.drainEvents()
	return p, nil
}

// PublishSnapshot sends one snapshot, keyed by symbol so consumers see
// per-symbol ordering.
func (p *Producer) PublishSnapshot(snapshot models.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(snapshot.Symbol),
		Value:          value,
	}, nil)
}

// drainEvents logs async delivery failures from the producer.
func (p *Producer) drainEvents() {
	for event := range p.producer.Events() {
		if msg, ok := event.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			logger.Log.Warn("snapshot feed delivery failed",
				zap.String("key", string(msg.Key)),
				zap.Error(msg.TopicPartition.Error),
			)
		}
	}
}

// Close flushes outstanding messages and releases the producer.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
