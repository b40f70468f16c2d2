package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/models"
)

type Producer struct {
	Writer        *kafka.Writer
	RedeemedTopic string
}

func NewProducer(brokers []string, redeemedTopic string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, RedeemedTopic: redeemedTopic}
}

// Publish writes a raw message to the given topic.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishTicketRedeemed streams a successful check-in for downstream
// analytics and audit.
func (p *Producer) PublishTicketRedeemed(event models.TicketRedeemedEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal redeemed event: %w", err)
	}
	return p.Publish(p.RedeemedTopic, event.TicketID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
