// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"contacts/internal/audit"
	"contacts/pkg/platform/circuit"
)

// Producer is the slice of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink writes one record per event, keyed by contact id so a contact's
// history stays ordered within a partition. When Kafka is failing the
// breaker opens and events go to the fallback sink instead.
type Sink struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	fallback audit.Sink
	logger   *slog.Logger
	closeFn  func()
}

type Option func(*Sink)

func WithFallback(s audit.Sink) Option {
	return func(k *Sink) { k.fallback = s }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(k *Sink) { k.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(k *Sink) { k.logger = logger }
}

// NewSink wraps an existing producer.
func NewSink(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("kafka-audit", circuit.WithFailureThreshold(3), circuit.WithCooldown(15*time.Second)),
		logger:   slog.New(slog.DiscardHandler),
		closeFn:  func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = audit.NewLogSink(s.logger)
	}
	return s
}

// Dial connects to brokers, makes sure the topic exists and returns a sink
// that owns the client.
func Dial(ctx context.Context, brokers []string, topic string, opts ...Option) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := EnsureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	s := NewSink(client, topic, opts...)
	s.closeFn = client.Close
	return s, nil
}

// EnsureTopic creates topic with one partition unless it already exists.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		return s.fallback.Append(ctx, event)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ContactID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "kafka audit sink circuit opened", "error", err)
		}
		s.logger.WarnContext(ctx, "kafka produce failed, using fallback",
			"action", event.Action,
			"contact_id", event.ContactID,
			"error", err,
		)
		return s.fallback.Append(ctx, event)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "kafka audit sink circuit closed")
	}
	return nil
}

// Close releases the client when the sink was built by Dial.
func (s *Sink) Close() {
	s.closeFn()
}
