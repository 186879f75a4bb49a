package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newQueuedProducer(sp sarama.SyncProducer) *Producer {
	p := &Producer{
		producer: sp,
		topic:    "auth-events",
		source:   "/auth-service",
		logger:   zap.NewNop(),
		queue:    make(chan outboundEvent, publishQueueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// slowProducer holds every send until released.
type slowProducer struct {
	sarama.SyncProducer
	release chan struct{}
	sent    chan *sarama.ProducerMessage
}

func (s *slowProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	<-s.release
	s.sent <- msg
	return 0, 0, nil
}

func (s *slowProducer) Close() error { return nil }

func TestProducerPublishDoesNotWaitOnBroker(t *testing.T) {
	broker := &slowProducer{
		release: make(chan struct{}),
		sent:    make(chan *sarama.ProducerMessage, 1),
	}
	p := newQueuedProducer(broker)

	returned := make(chan struct{})
	go func() {
		p.Publish(context.Background(), EventUserLoggedIn, "user-1", map[string]string{"userId": "user-1"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("publish waited on broker ack")
	}

	close(broker.release)
	require.NoError(t, p.Close())

	select {
	case msg := <-broker.sent:
		assert.Equal(t, "auth-events", msg.Topic)
	default:
		t.Fatal("event never reached the broker")
	}
}

func TestProducerCloseDrainsQueue(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()

	p := newQueuedProducer(sp)
	p.Publish(context.Background(), EventUserRegistered, "user-1", nil)
	p.Publish(context.Background(), EventEmailVerified, "user-1", nil)

	// Close must flush both queued events; the mock fails the test if an
	// expectation is left unconsumed.
	require.NoError(t, p.Close())

	p.Publish(context.Background(), EventUserLoggedIn, "user-1", nil)
}
