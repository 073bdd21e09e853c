package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Message struct {
	Topic   string
	Key     string
	Type    string
	Payload []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// ErrBrokerUnavailable is returned without contacting Kafka while the
// breaker is open.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func NewKafkaPublisher(brokers []string, log *zap.Logger) Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *kafkaPublisher {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &kafkaPublisher{writer: w, breaker: breaker, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, msg Message) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, kafka.Message{
			Topic: msg.Topic,
			Key:   []byte(msg.Key),
			Value: msg.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.Type)},
			},
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return err
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
