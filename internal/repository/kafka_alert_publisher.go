package repository

import (
	"context"

	"HeatPulse/internal/domain/models"
	pkgkafka "HeatPulse/pkg/kafka"
)

// KafkaAlertPublisher pushes surviving alerts onto the alert topic for
// downstream consumers. Keyed by code so one instrument's alerts stay
// ordered within a partition.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(a.Code),
			Value: a,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopAlertPublisher is used when the Kafka bus is disabled.
type NopAlertPublisher struct{}

func (NopAlertPublisher) PublishAlerts(context.Context, []models.Alert) error { return nil }
func (NopAlertPublisher) Close() error                                        { return nil }
