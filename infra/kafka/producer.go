// Package kafka is the order-entry gateway: orders consumed from a
// Kafka topic are fed into the partition queues like any other client,
// and their acks, cancels and trades are written to a response topic.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer writes gateway responses. Batching is left to the writer;
// the 10ms linger keeps response latency bounded without a message per
// round trip.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
