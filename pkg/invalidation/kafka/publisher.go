package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Publisher announces capabilities changes. Events are keyed by service URL
// so that all events of one service land on one partition in order.
type Publisher struct {
	topic string
	prod  sarama.SyncProducer
}

func NewPublisher(cfg InvalidationConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("publisher: brokers and topic are required")
	}
	sc, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}
	prod, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("publisher: create producer: %w", err)
	}
	return NewPublisherWithProducer(prod, cfg.Topic), nil
}

func NewPublisherWithProducer(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: prod}
}

// Publish validates ev, stamps it when TS is unset and waits for the broker
// to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, ev Event) (partition int32, offset int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("publisher: %w", err)
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("publisher: marshal: %w", err)
	}
	partition, offset, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ServiceURL),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("publisher: send: %w", err)
	}
	return partition, offset, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("publisher: close producer: %w", err)
	}
	return nil
}
