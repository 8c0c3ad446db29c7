package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/restaurant-checkout/pkg/redis"
)

// EventGuardScope namespaces processor event ids in the idempotency keyspace.
const EventGuardScope = "stripe:webhook"

// EventGuard remembers processed event ids so redeliveries are acknowledged
// without reprocessing. Correctness does not depend on it: the order unique
// index still holds when Redis loses a key.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("event ttl must be positive")
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// Claim marks the event as in flight. It reports false when the event was
// already claimed.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	claimed, err := g.store.SetNX(ctx, g.store.IdempotencyKey(EventGuardScope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return claimed, nil
}

// Release forgets a claim so the processor's retry is handled again.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(EventGuardScope, eventID))
}
