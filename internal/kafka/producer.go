package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes to one topic through a buffered inbox drained by a
// single goroutine. Writes are async; failures are logged.
type Producer struct {
	w       messageWriter
	topic   string
	service string

	mu       sync.RWMutex
	closed   bool
	inbox    chan kafka.Message
	stopping chan struct{} // closed first, releases publishers blocked on a full inbox
	stopOnce sync.Once
	closeCh  chan struct{}
}

func NewProducer(brokers []string, topic, service string, buf int) *Producer {
	p := &Producer{
		topic:   topic,
		service: service,
		inbox:    make(chan kafka.Message, buf),
		stopping: make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logging.Error(service, "publish "+topic, err)
			}
		},
	}
	return p
}

// Start runs the drain loop until ctx is done or Close is called. Messages
// already queued are flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() {
			if err := p.w.Close(); err != nil {
				logging.Error(p.service, "close writer "+p.topic, err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				return
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		logging.Error(p.service, "publish "+p.topic, err)
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	case <-p.stopping:
		return ErrProducerClosed
	}
}

// Close stops accepting messages. Safe to call more than once.
func (p *Producer) Close() {
	p.stopOnce.Do(func() { close(p.stopping) })
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the drain loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
