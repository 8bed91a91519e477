// Package events announces committed orders to other systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	applog "shopfront/internal/log"
)

// OrderPlaced is published once an order and its cart deletion committed.
type OrderPlaced struct {
	OrderID  string         `json:"orderId"`
	UserID   string         `json:"userId"`
	Items    map[string]int `json:"items"`
	Status   string         `json:"status"`
	PlacedAt time.Time      `json:"placedAt"`
}

type Publisher interface {
	OrderPlaced(ctx context.Context, e OrderPlaced) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by user id, so one user's
// orders stay in one partition.
type Kafka struct {
	w     messageWriter
	topic string
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (k *Kafka) OrderPlaced(ctx context.Context, e OrderPlaced) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	err = k.w.WriteMessages(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(e.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("order.placed")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

// Log writes events to the application log. It is used when no broker is
// configured.
type Log struct{}

func (Log) OrderPlaced(_ context.Context, e OrderPlaced) error {
	applog.Event(applog.LevelAudit, "order.placed", nil, map[string]any{
		"order_id": e.OrderID,
		"user_id":  e.UserID,
		"lines":    len(e.Items),
	})
	return nil
}

func (Log) Close() error { return nil }
