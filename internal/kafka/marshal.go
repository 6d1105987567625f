package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Encode serializes env and builds its routing headers.
func Encode(env orders.Envelope) ([]byte, []kafka.Header, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, []kafka.Header{
		{Key: HeaderEventType, Value: []byte(env.EventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	}, nil
}

func DecodeEnvelope(b []byte) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the typed payload of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// Publisher is the sending side of a Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// PublishEvent wraps payload in an envelope and queues it on p.
func PublishEvent(p Publisher, key []byte, eventType, producer, traceID, correlationID string, payload any) (orders.Envelope, error) {
	env, err := orders.NewEnvelope(eventType, producer, traceID, correlationID, payload)
	if err != nil {
		return env, err
	}
	b, headers, err := Encode(env)
	if err != nil {
		return env, err
	}
	return env, p.Publish(key, b, headers...)
}
