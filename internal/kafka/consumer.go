package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	service string

	// Retries is how many times a failing message is retried before its
	// offset is committed anyway.
	Retries int
	Backoff time.Duration
}

func NewConsumer(brokers []string, group, topic, service string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously after each handled message
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, service: service, Retries: 3, Backoff: 200 * time.Millisecond}
}

// Start fetches messages and fans them out to the workers until ctx is
// done. It returns nil on shutdown and the fetch error otherwise.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, h, m)
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	var err error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		logging.Log(logging.Fields{
			Service: c.service,
			Step:    "handle " + m.Topic,
			Status:  "retry",
			Message: err.Error(),
		})
		if attempt == c.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.Backoff * time.Duration(attempt+1)):
		}
	}
	if err != nil {
		logging.Error(c.service, "drop "+m.Topic, err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		logging.Error(c.service, "commit "+m.Topic, err)
	}
}
