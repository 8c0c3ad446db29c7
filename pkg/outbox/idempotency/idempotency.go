package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the Redis surface the manager needs; pkg/redis.Client satisfies it.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Manager hands out per-delivery claims on co:idempotency:evt:processed:<consumer>:<event_id>.
// A claim holds a random token, so a worker whose push failed only frees its
// own claim and never one another worker has since taken over.
type Manager struct {
	store Store
	ttl   time.Duration
}

// Claim is the outcome of trying to take an event for one consumer.
type Claim struct {
	// Duplicate is set when another delivery already took the event.
	Duplicate bool

	key   string
	token string
}

// NewManager builds a guard whose claims expire after ttl; zero keeps them
// until released.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim takes eventID for consumer. Stripe event ids and outbox UUIDs share
// the same key space.
func (m *Manager) Claim(ctx context.Context, consumer, eventID string) (*Claim, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	set, err := m.store.SetNX(ctx, key, token, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("claim %s for %s: %w", eventID, consumer, err)
	}
	if !set {
		return &Claim{Duplicate: true, key: key}, nil
	}
	return &Claim{key: key, token: token}, nil
}

// Release gives the event back so the next delivery handles it. Releasing a
// duplicate, or a claim that expired and was retaken, is a no-op.
func (m *Manager) Release(ctx context.Context, claim *Claim) error {
	if claim == nil || claim.Duplicate || claim.token == "" {
		return nil
	}
	if _, err := m.store.DelIfEqual(ctx, claim.key, claim.token); err != nil {
		return fmt.Errorf("release %s: %w", claim.key, err)
	}
	return nil
}

func (m *Manager) processedKey(consumer, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	eventID = strings.TrimSpace(eventID)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	if strings.Contains(consumer, ":") {
		return "", fmt.Errorf("consumer %q must not contain ':'", consumer)
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID), nil
}
