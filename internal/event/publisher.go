package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/order"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Publisher delivers host notifications. The topic is the event name.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

// OrderMessage is the body of every order.* event.
type OrderMessage struct {
	Event         string    `json:"event"`
	OrderID       int64     `json:"order_id"`
	OrderUUID     string    `json:"order_uuid"`
	State         string    `json:"state"`
	Price         string    `json:"price"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customer_email"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PublishOrder sends ev for o, keyed by the order uuid.
func PublishOrder(ctx context.Context, p Publisher, ev order.Event, o *order.Order) error {
	msg := OrderMessage{
		Event:         string(ev),
		OrderID:       o.ID,
		OrderUUID:     o.UUID,
		State:         string(o.State),
		Price:         o.Price.StringFixed(2),
		Currency:      o.Currency,
		CustomerEmail: o.CustomerEmail,
		OccurredAt:    time.Now().UTC(),
	}
	return p.Publish(ctx, string(ev), o.UUID, msg)
}

// ----------------- Kafka -----------------

type KafkaPublisher struct {
	producer sarama.SyncProducer
}

const connectAttempts = 5

func NewKafkaPublisher(broker string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= connectAttempts; i++ {
		producer, err = sarama.NewSyncProducer([]string{broker}, cfg)
		if err == nil {
			logger.L().Info("Kafka producer initialized", zap.String("broker", broker))
			return NewKafkaPublisherWithProducer(producer), nil
		}

		logger.L().Warn("Waiting for Kafka",
			zap.Int("attempt", i),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err),
		)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("failed to start kafka producer: %w", err)
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	log := logger.FromCtx(ctx).With(zap.String("topic", topic), zap.String("key", key))

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal event", zap.Error(err))
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.Error("Failed to send Kafka message", zap.Error(err))
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	log.Info("Published event", zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// ----------------- Log only -----------------

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	logger.FromCtx(ctx).Info("Event (no broker configured)",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Any("payload", payload),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
