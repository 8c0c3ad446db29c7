// Package notifications pushes kitchen alerts to staff devices from the order
// event stream.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/firebase"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/idempotency"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/registry"
)

const staffPushConsumer = "staff-push"

type pusher interface {
	Send(ctx context.Context, push firebase.Push) (string, error)
}

type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Decoders     *registry.DecoderRegistry
	Idempotency  *idempotency.Manager
	Pusher       pusher
	Topic        string
	Logger       *logger.Logger
}

// Consumer turns order events into FCM pushes on the staff topic.
type Consumer struct {
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  *idempotency.Manager
	push         pusher
	topic        string
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Decoders == nil {
		return nil, fmt.Errorf("decoder registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Pusher == nil {
		return nil, fmt.Errorf("pusher required")
	}
	if strings.TrimSpace(params.Topic) == "" {
		return nil, fmt.Errorf("staff topic required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		decoders:     params.Decoders,
		idempotency:  params.Idempotency,
		push:         params.Pusher,
		topic:        params.Topic,
		logg:         params.Logger,
	}, nil
}

// Run receives until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("notification subscription not configured")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
	sent bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderCreated && eventType != enums.EventReconciliationEscalate {
		c.logg.Debug(logCtx, "event does not notify staff")
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}
	if envelope.EventID == "" {
		c.logg.Warn(logCtx, "envelope missing event id")
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{}
	}
	push, ok := c.buildPush(decoded)
	if !ok {
		c.logg.Warn(logCtx, "payload type not handled")
		return processResult{}
	}

	claim, err := c.idempotency.Claim(ctx, staffPushConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if claim.Duplicate {
		c.logg.Debug(logCtx, "event already pushed")
		return processResult{}
	}

	if _, err := c.push.Send(ctx, push); err != nil {
		if firebase.IsPermanent(err) {
			c.logg.Error(logCtx, "staff push rejected", err)
			return processResult{}
		}
		c.logg.Error(logCtx, "staff push failed, will retry", err)
		if delErr := c.idempotency.Release(ctx, claim); delErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency marker", delErr)
		}
		return processResult{nack: true}
	}
	c.logg.Info(logCtx, "staff notified")
	return processResult{sent: true}
}

func (c *Consumer) buildPush(decoded any) (firebase.Push, bool) {
	switch event := decoded.(type) {
	case *payloads.OrderCreatedEvent:
		return firebase.Push{
			Topic: c.topic,
			Title: fmt.Sprintf("New order %s", event.OrderNumber),
			Body:  orderSummary(event),
			Data: map[string]string{
				"type":        string(enums.EventOrderCreated),
				"orderId":     event.OrderID.String(),
				"orderNumber": event.OrderNumber,
			},
		}, true
	case *payloads.ReconciliationEscalatedEvent:
		return firebase.Push{
			Topic: c.topic,
			Title: "Paid order needs attention",
			Body: fmt.Sprintf("A payment of %s %s has no order after %d attempts.",
				fees.FromCents(event.AmountCents).StringFixed(2), strings.ToUpper(event.Currency), event.Attempts),
			Data: map[string]string{
				"type":             string(enums.EventReconciliationEscalate),
				"reconciliationId": event.ReconciliationID.String(),
				"paymentIntentId":  event.PaymentIntentID,
			},
		}, true
	default:
		return firebase.Push{}, false
	}
}

func orderSummary(event *payloads.OrderCreatedEvent) string {
	kind := "Pickup"
	if event.OrderType == enums.OrderTypeDelivery {
		kind = "Delivery"
	}
	items := "items"
	if event.ItemCount == 1 {
		items = "item"
	}
	body := fmt.Sprintf("%s, %d %s, %s %s", kind, event.ItemCount, items,
		fees.FromCents(event.AmountCents).StringFixed(2), strings.ToUpper(event.Currency))
	if name := strings.TrimSpace(event.CustomerName); name != "" {
		body = name + ": " + body
	}
	return body
}
