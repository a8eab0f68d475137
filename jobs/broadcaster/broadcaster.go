// Package broadcaster publishes the market-data stream to Kafka.
// It hangs off the output router as a tap; a bounded channel decouples
// the router from broker latency, shedding on overflow.
package broadcaster

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"

	"matchd/protocol"
)

const defaultBuffer = 4096

type event struct {
	msg protocol.OutputMessage
	seq uint64
}

type Broadcaster struct {
	producer sarama.AsyncProducer
	topic    string
	ch       chan event
	wg       sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func New(brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		producer: producer,
		topic:    topic,
		ch:       make(chan event, defaultBuffer),
	}, nil
}

// Publish implements the output-router tap. Never blocks.
func (b *Broadcaster) Publish(m *protocol.OutputMessage, seq uint64) {
	select {
	case b.ch <- event{msg: *m, seq: seq}:
	default:
		b.dropped.Add(1)
	}
}

func (b *Broadcaster) Start(ctx context.Context) {
	log.Printf("[broadcaster] publishing to topic %q", b.topic)

	b.wg.Add(2)

	go func() {
		defer b.wg.Done()
		for err := range b.producer.Errors() {
			b.failed.Add(1)
			log.Printf("[broadcaster] publish failed: %v", err.Err)
		}
	}()

	go func() {
		defer b.wg.Done()
		buf := make([]byte, 0, 128)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.ch:
				buf = AppendEvent(buf[:0], &ev.msg, ev.seq)
				value := make([]byte, len(buf))
				copy(value, buf)

				// Key by symbol so one instrument stays ordered
				// within its Kafka partition.
				b.producer.Input() <- &sarama.ProducerMessage{
					Topic: b.topic,
					Key:   sarama.ByteEncoder(symbolBytes(ev.msg.Symbol)),
					Value: sarama.ByteEncoder(value),
				}
				b.published.Add(1)
			}
		}
	}()
}

func (b *Broadcaster) Close() error {
	err := b.producer.Close()
	b.wg.Wait()
	return err
}

func (b *Broadcaster) Published() uint64 { return b.published.Load() }
func (b *Broadcaster) Dropped() uint64   { return b.dropped.Load() }
func (b *Broadcaster) Failed() uint64    { return b.failed.Load() }
