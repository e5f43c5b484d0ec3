// Package kafka publishes booking events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

const HeaderKind = "kind"

var ErrPublisherClosed = errors.New("kafka: publisher closed")

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	w      messageWriter
	topic  string
	mu     sync.RWMutex
	closed bool
}

func New(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafkago.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			log.Error().Str("component", "kafka").Msgf(msg, args...)
		}),
	}
	return NewWithWriter(w, topic), nil
}

// NewWithWriter wraps an existing writer; tests pass an in-memory one.
func NewWithWriter(w messageWriter, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

// Notify implements domain.Notifier. Events are keyed by accommodation so that
// every event of one accommodation lands on the same partition in order.
func (p *Publisher) Notify(ctx context.Context, n domain.Notification) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode %s: %w", n.Kind, err)
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(n.AccommodationID, 10)),
		Value: value,
		Time:  n.At,
		Headers: []kafkago.Header{
			{Key: HeaderKind, Value: []byte(n.Kind)},
			{Key: "id", Value: []byte(n.ID)},
		},
	}
	start := time.Now()
	err = p.w.WriteMessages(ctx, msg)
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("kafka", p.topic, status, time.Since(start))
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", n.Kind, p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.w.Close()
}
