package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"ccmart/internal/usecase"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// usecase.OrderEventPublisher のKafka実装。キーは注文ID（同じ注文は同じパーティション）
type OrderEventProducer struct {
	writer *kafka.Writer
}

func NewOrderEventProducer(brokers []string, topic string) *OrderEventProducer {
	return &OrderEventProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *OrderEventProducer) Publish(ctx context.Context, e usecase.OrderEvent) error {
	env, err := NewEnvelope(e)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	})
}

func (p *OrderEventProducer) Close() error {
	return p.writer.Close()
}
