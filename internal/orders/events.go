package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventIngredientLowStock = "IngredientLowStock"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id, or ingredient id for stock alerts
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

type OrderCreatedPayload struct {
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Lines         []OrderLine     `json:"lines"`
	Consumption   []IngredientUse `json:"consumption"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewOrderCreatedPayload(rc Receipt) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:       rc.OrderID,
		UserID:        rc.Order.UserID,
		CustomerID:    rc.Order.CustomerID,
		Total:         rc.Total,
		PaymentMethod: rc.Order.PaymentMethod,
		Lines:         rc.Order.Lines,
		Consumption:   rc.Consumption,
		CreatedAt:     rc.Order.CreatedAt,
	}
}

type OrderStatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type IngredientLowStockPayload struct {
	IngredientID   int64           `json:"ingredient_id"`
	Name           string          `json:"name"`
	Unit           Unit            `json:"unit"`
	Remaining      decimal.Decimal `json:"remaining"`
	AlertThreshold decimal.Decimal `json:"alert_threshold"`
	OrderID        int64           `json:"order_id,omitempty"` // order that crossed the threshold
}
