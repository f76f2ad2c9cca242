// Package events publishes transition and settlement notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/config"
)

type KafkaPublisher struct {
	writer          *kafka.Writer
	transitionTopic string
	settlementTopic string
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: cfg.WriteTimeout,
		},
		transitionTopic: cfg.TransitionTopic,
		settlementTopic: cfg.SettlementTopic,
	}
}

func (k *KafkaPublisher) PublishTransition(ctx context.Context, event app.TransitionEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Key by application so per-application ordering survives partitioning.
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.transitionTopic,
		Key:   []byte(event.ApplicationID),
		Value: msg,
		Time:  time.Now(),
	})
}

func (k *KafkaPublisher) PublishSettlement(ctx context.Context, event app.SettlementEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.settlementTopic,
		Key:   []byte(event.ApplicationID),
		Value: msg,
		Time:  time.Now(),
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
