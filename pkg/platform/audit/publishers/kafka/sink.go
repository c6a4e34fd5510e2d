// Package kafka forwards audit events to a Kafka topic as JSON, keyed by
// widget so one widget's events stay ordered within a partition.
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

	audit "consentd/pkg/platform/audit"
)

// ErrBreakerOpen is returned by Append while produce attempts are suspended.
var ErrBreakerOpen = errors.New("kafka audit sink: breaker open")

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Sink struct {
	producer Producer
	topic    string
	timeout  time.Duration
	breaker  *breaker
	metrics  *Metrics
	logger   *slog.Logger
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Sink) {
		s.metrics = m
	}
}

// WithBreaker overrides the failure threshold and cooldown of the produce breaker.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(s *Sink) {
		s.breaker = newBreaker(threshold, cooldown)
	}
}

// WithProduceTimeout bounds each synchronous produce call.
func WithProduceTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Dial connects to the brokers and returns a sink producing to topic.
func Dial(brokers []string, topic string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit sink: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka audit sink: no topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return NewSink(client, topic, opts...), nil
}

// NewSink wraps an existing producer.
func NewSink(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		breaker:  newBreaker(0, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append produces one event and waits for the broker acknowledgement.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	if !s.breaker.allow() {
		s.metrics.incDropped()
		return ErrBreakerOpen
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.WidgetID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.metrics.incFailures()
		if opened := s.breaker.failure(); opened {
			s.metrics.setBreakerOpen(true)
			if s.logger != nil {
				s.logger.WarnContext(ctx, "kafka audit sink breaker opened", "topic", s.topic, "error", err)
			}
		}
		return fmt.Errorf("produce audit event: %w", err)
	}

	s.breaker.success()
	s.metrics.setBreakerOpen(false)
	s.metrics.incProduced()
	return nil
}

// Close flushes and closes the underlying client.
func (s *Sink) Close() {
	s.producer.Close()
}

// EnsureTopic creates the audit topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Client exposes the underlying franz-go client when the sink was dialed, so
// callers can bootstrap the topic with the same connection.
func (s *Sink) Client() *kgo.Client {
	client, _ := s.producer.(*kgo.Client)
	return client
}
