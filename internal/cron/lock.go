package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/restaurant-checkout/pkg/redis"
)

const defaultLockTTL = 15 * time.Minute

// ErrLeaseLost means the lease expired while the job was still running and
// may have been taken by another worker.
var ErrLeaseLost = errors.New("cron lease lost before release")

// Lock gives one worker exclusive use of a job for a single run.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

// holderReporter is implemented by locks that can name the current owner.
type holderReporter interface {
	Holder(ctx context.Context, job string) (string, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
	LockKey(name string) string
}

// RedisLock leases one key per job under co:lock:<scope>:<job>, so a slow
// reconciliation sweep never holds back outbox retention. The stored value is
// host:pid:token of the worker running the job.
type RedisLock struct {
	store lockStore
	scope string
	ttl   time.Duration
	owner string
}

// NewRedisLock builds a per-job lease; scope is usually the binary name plus
// the environment.
func NewRedisLock(store lockStore, scope string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, scope: scope, ttl: ttl, owner: ownerToken()}, nil
}

func ownerToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Owner is the value this worker writes into every lease it takes.
func (l *RedisLock) Owner() string {
	return l.owner
}

func (l *RedisLock) key(job string) string {
	return l.store.LockKey(l.scope + ":" + job)
}

// Acquire takes the job's lease for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key(job), l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", job, err)
	}
	return ok, nil
}

// Release drops the job's lease if this worker still owns it. ErrLeaseLost
// is returned when the lease had already expired or changed hands.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	removed, err := l.store.DelIfEqual(ctx, l.key(job), l.owner)
	if err != nil {
		return fmt.Errorf("release %s: %w", job, err)
	}
	if !removed {
		return ErrLeaseLost
	}
	return nil
}

// Holder returns who currently owns the job's lease, or "" when it is free.
func (l *RedisLock) Holder(ctx context.Context, job string) (string, error) {
	value, err := l.store.Get(ctx, l.key(job))
	if errors.Is(err, pkgredis.Nil) {
		return "", nil
	}
	return value, err
}
