package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloudEvent defines the envelope for CloudEvents v1.0.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         *string     `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType *string     `json:"datacontenttype,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// EventType is a string alias for event types.
type EventType string

// Security events published by the auth service.
const (
	EventUserRegistered     EventType = "com.todoapp.auth.user.registered"
	EventUserLoggedIn       EventType = "com.todoapp.auth.user.logged_in"
	EventPasswordReset      EventType = "com.todoapp.auth.user.password_reset"
	EventEmailVerified      EventType = "com.todoapp.auth.user.email_verified"
	EventAccountsMerged     EventType = "com.todoapp.auth.user.accounts_merged"
	EventIdentityLinked     EventType = "com.todoapp.auth.user.identity_linked"
	EventIdentityUnlinked   EventType = "com.todoapp.auth.user.identity_unlinked"
	EventSessionsRevokedAll EventType = "com.todoapp.auth.session.revoked_all"
)

const (
	cloudEventSpecVersion     = "1.0"
	cloudEventDataContentType = "application/json"

	publishQueueSize = 256
)

// Publisher is the outbound event port. A nil *Producer satisfies it as a
// no-op, so callers never need to branch on whether Kafka is configured.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, subject string, data interface{})
	Close() error
}

// Producer publishes CloudEvents to a single Kafka topic. Sends go through
// a bounded queue drained by a background worker, so a slow or unreachable
// broker never holds up the operation that emitted the event.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	logger   *zap.Logger

	queue  chan outboundEvent
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

type outboundEvent struct {
	eventType EventType
	msg       *sarama.ProducerMessage
}

// NewProducer creates a Kafka producer. cloudEventSource identifies this
// service, e.g. "/auth-service".
func NewProducer(brokers []string, topic, cloudEventSource string, logger *zap.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		topic:    topic,
		source:   cloudEventSource,
		logger:   logger,
		queue:    make(chan outboundEvent, publishQueueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Publish enqueues a CloudEvent for delivery. Publishing is best-effort:
// the caller never waits on the broker, and failures are logged and never
// returned, since downstream consumers are not part of any user-facing
// operation. When the queue is full the event is dropped.
func (p *Producer) Publish(_ context.Context, eventType EventType, subject string, data interface{}) {
	if p == nil {
		return
	}

	event := CloudEvent{
		SpecVersion: cloudEventSpecVersion,
		ID:          uuid.NewString(),
		Source:      p.source,
		Type:        string(eventType),
		Time:        time.Now().UTC(),
		Data:        data,
	}
	contentType := cloudEventDataContentType
	event.DataContentType = &contentType
	if subject != "" {
		event.Subject = &subject
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event",
			zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(eventJSON),
	}
	if subject != "" {
		msg.Key = sarama.StringEncoder(subject)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- outboundEvent{eventType: eventType, msg: msg}:
	default:
		p.logger.Warn("event queue full, event dropped",
			zap.String("event_type", string(eventType)),
			zap.String("topic", p.topic))
	}
}

func (p *Producer) run() {
	defer close(p.done)
	for ev := range p.queue {
		if _, _, err := p.producer.SendMessage(ev.msg); err != nil {
			p.logger.Error("failed to publish event",
				zap.String("event_type", string(ev.eventType)),
				zap.String("topic", p.topic),
				zap.Error(err))
		}
	}
}

// Close drains queued events before closing the underlying producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.queue)
		<-p.done
	})
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

// NoopPublisher discards every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, EventType, string, interface{}) {}
func (NoopPublisher) Close() error                                            { return nil }

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = NoopPublisher{}
)
