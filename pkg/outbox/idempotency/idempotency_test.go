package idempotency

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) DelIfEqual(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "co:idempotency:" + scope + ":" + id
}

func TestClaimFirstDeliveryThenDuplicate(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.NewString()

	first, err := manager.Claim(ctx, "staff-push", eventID)
	if err != nil || first.Duplicate {
		t.Fatalf("first delivery should own the event: %+v %v", first, err)
	}
	key := "co:idempotency:evt:processed:staff-push:" + eventID
	if store.values[key] == "" || store.ttls[key] != 24*time.Hour {
		t.Fatalf("unexpected stored claim %q ttl %v", store.values[key], store.ttls[key])
	}

	second, err := manager.Claim(ctx, "staff-push", eventID)
	if err != nil || !second.Duplicate {
		t.Fatalf("redelivery should be a duplicate: %+v %v", second, err)
	}
	if err := manager.Release(ctx, second); err != nil {
		t.Fatalf("releasing a duplicate: %v", err)
	}
	if _, ok := store.values[key]; !ok {
		t.Fatalf("duplicate release must not free the first claim")
	}
}

func TestReleaseOnlyFreesOwnClaim(t *testing.T) {
	store := newMemoryStore()
	manager, _ := NewManager(store, time.Minute)
	ctx := context.Background()
	eventID := "evt_1NpZ2kLkdIwHu7ix"

	claim, err := manager.Claim(ctx, "staff-push", eventID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	key := "co:idempotency:evt:processed:staff-push:" + eventID
	// claim expired and a second worker took the redelivery
	store.values[key] = "other-worker-token"

	if err := manager.Release(ctx, claim); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values[key] != "other-worker-token" {
		t.Fatalf("stale release removed another worker's claim")
	}

	delete(store.values, key)
	fresh, _ := manager.Claim(ctx, "staff-push", eventID)
	if err := manager.Release(ctx, fresh); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.values[key]; ok {
		t.Fatalf("own claim should be released")
	}
}

func TestClaimErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if _, err := manager.Claim(ctx, "staff-push", "evt_boom"); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.Claim(ctx, " ", "evt_1"); err == nil {
		t.Fatal("expected error for blank consumer")
	}
	if _, err := manager.Claim(ctx, "staff:push", "evt_1"); err == nil {
		t.Fatal("expected error for consumer with separator")
	}
	if _, err := manager.Claim(ctx, "staff-push", ""); err == nil {
		t.Fatal("expected error for blank event id")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager(newMemoryStore(), -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
