package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload.
// check rejects payloads the kitchen or support staff could not act on;
// attributes lifts the payment and order identifiers into Pub/Sub message
// attributes so subscriptions can filter without decoding the body.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, map[string]string, error)
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
	Attributes map[string]string
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, check func(*T) error, attrs func(*T) map[string]string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		decode: func(data json.RawMessage) (any, map[string]string, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, nil, fmt.Errorf("decode %s payload: %w", eventType, err)
			}
			if err := check(payload); err != nil {
				return nil, nil, fmt.Errorf("%s payload: %w", eventType, err)
			}
			return payload, attrs(payload), nil
		},
	}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		describe(enums.EventOrderCreated, enums.AggregateOrder,
			func(e *payloads.OrderCreatedEvent) error {
				if e.OrderID == uuid.Nil || strings.TrimSpace(e.OrderNumber) == "" {
					return errors.New("order id and number are required")
				}
				if strings.TrimSpace(e.PaymentIntentID) == "" {
					return errors.New("payment intent id is required")
				}
				return nil
			},
			func(e *payloads.OrderCreatedEvent) map[string]string {
				return map[string]string{
					"payment_intent_id": e.PaymentIntentID,
					"order_number":      e.OrderNumber,
					"order_source":      string(e.Source),
				}
			}),
		describe(enums.EventOrderStatusChanged, enums.AggregateOrder,
			func(e *payloads.OrderStatusChangedEvent) error {
				if e.OrderID == uuid.Nil {
					return errors.New("order id is required")
				}
				if !e.To.IsValid() {
					return fmt.Errorf("unknown target status %q", e.To)
				}
				return nil
			},
			func(e *payloads.OrderStatusChangedEvent) map[string]string {
				return map[string]string{
					"order_number": e.OrderNumber,
					"order_status": string(e.To),
				}
			}),
		describe(enums.EventMerchantStatusChanged, enums.AggregateMerchant,
			func(e *payloads.MerchantStatusChangedEvent) error {
				if strings.TrimSpace(e.AccountID) == "" {
					return errors.New("connected account id is required")
				}
				return nil
			},
			func(e *payloads.MerchantStatusChangedEvent) map[string]string {
				return map[string]string{
					"account_id":      e.AccountID,
					"merchant_status": string(e.To),
				}
			}),
		describe(enums.EventReconciliationEscalate, enums.AggregateReconciliation,
			func(e *payloads.ReconciliationEscalatedEvent) error {
				if strings.TrimSpace(e.PaymentIntentID) == "" {
					return errors.New("payment intent id is required")
				}
				return nil
			},
			func(e *payloads.ReconciliationEscalatedEvent) map[string]string {
				return map[string]string{
					"payment_intent_id":     e.PaymentIntentID,
					"reconciliation_reason": string(e.Reason),
				}
			}),
	} {
		desc.Topic = cfg.OrdersTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable: the row will not decode any better on the next attempt.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload, attrs, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
		Attributes: attrs,
	}, nil
}
