package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/logger"
)

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	mockMode bool
	log      *logger.Logger
}

func NewKafkaProducer(brokers []string, topic string, mockMode bool, log *logger.Logger) (*KafkaProducer, error) {
	if mockMode || len(brokers) == 0 {
		log.LogEvent("MOCK_MODE", "producer", "Running in mock mode - no actual Kafka connection")
		return &KafkaProducer{topic: topic, mockMode: true, log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogEvent("CONNECTED", "producer", fmt.Sprintf("Connected to Kafka brokers: %v", brokers))
	return newKafkaProducer(producer, topic, log), nil
}

func newKafkaProducer(p sarama.SyncProducer, topic string, log *logger.Logger) *KafkaProducer {
	return &KafkaProducer{producer: p, topic: topic, log: log}
}

// partitionKey keeps all events of one check, or of one table group, on the
// same partition so consumers see them in transition order.
func partitionKey(e coordinator.Event) string {
	if e.OrderID != "" {
		return e.OrderID
	}
	if len(e.TableIDs) > 0 {
		return e.TableIDs[0]
	}
	return e.ID
}

func (p *KafkaProducer) Notify(_ context.Context, e coordinator.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.mockMode {
		p.log.LogEvent("MOCK_PUBLISH", p.topic, fmt.Sprintf("Mock publishing event: %s", e.Type))
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(partitionKey(e)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", p.topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.Debug("KAFKA", fmt.Sprintf("%s sent to partition %d at offset %d", e.Type, partition, offset))
	return nil
}

func (p *KafkaProducer) Close() error {
	if p.mockMode || p.producer == nil {
		return nil
	}
	p.log.LogEvent("CLOSING", "producer", "Closing Kafka producer connection")
	return p.producer.Close()
}
