package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-cafe-pos/internal/kafka"
	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service turns OrderCreated events into IngredientLowStock alerts for
// every ingredient the order left at or under its threshold.
type Service struct {
	Events      deduper // event ids already handled
	Alerts      deduper // ingredients alerted within the quiet window
	Publisher   kafkax.Publisher
	ServiceName string
}

// HandleOrderCreated is installed as the consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// undecodable messages are never retried
		logging.Error(s.ServiceName, "decode", err)
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	first, err := s.Events.FirstSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		logging.Error(s.ServiceName, "decode payload", err)
		return nil
	}

	for _, use := range p.Consumption {
		if !use.BelowThreshold {
			continue
		}
		if err := s.alert(ctx, env, p.OrderID, use); err != nil {
			_ = s.Events.Forget(ctx, env.EventID)
			return err
		}
	}
	return nil
}

func (s *Service) alert(ctx context.Context, env orders.Envelope, orderID int64, use orders.IngredientUse) error {
	id := strconv.FormatInt(use.IngredientID, 10)
	first, err := s.Alerts.FirstSeen(ctx, id)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	start := time.Now()
	_, err = kafkax.PublishEvent(s.Publisher, []byte(id), orders.EventIngredientLowStock,
		s.ServiceName, env.TraceID, id, orders.IngredientLowStockPayload{
			IngredientID:   use.IngredientID,
			Name:           use.Name,
			Unit:           use.Unit,
			Remaining:      use.Remaining,
			AlertThreshold: use.AlertThreshold,
			OrderID:        orderID,
		})
	if err != nil {
		_ = s.Alerts.Forget(ctx, id)
		return fmt.Errorf("publish low stock %s: %w", id, err)
	}
	logging.Log(logging.Fields{
		Service:    s.ServiceName,
		OrderID:    strconv.FormatInt(orderID, 10),
		EventID:    env.EventID,
		Step:       "low_stock_alert",
		Status:     "published",
		DurationMS: time.Since(start).Milliseconds(),
		Message:    fmt.Sprintf("%s at %s %s", use.Name, use.Remaining.String(), use.Unit),
	})
	return nil
}
