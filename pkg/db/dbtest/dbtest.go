// Package dbtest opens throwaway sqlite databases carrying the checkout schema.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db"
)

var dbSeq atomic.Int64

// sqlite mirrors pkg/migrate/migrations closely enough for repository tests:
// same tables, same unique constraints, text in place of uuid/jsonb.
var schema = []string{
	`CREATE TABLE merchant_accounts (
		id TEXT PRIMARY KEY,
		slot TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL UNIQUE,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		charges_enabled BOOLEAN NOT NULL DEFAULT 0,
		payouts_enabled BOOLEAN NOT NULL DEFAULT 0,
		details_submitted BOOLEAN NOT NULL DEFAULT 0,
		onboarding_link TEXT,
		onboarding_link_expires_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL,
		order_seq INTEGER,
		payment_intent_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		source TEXT NOT NULL,
		order_type TEXT NOT NULL DEFAULT 'pickup',
		currency TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		subtotal_cents INTEGER NOT NULL,
		service_fee_cents INTEGER NOT NULL,
		customer_info TEXT NOT NULL,
		items TEXT NOT NULL,
		items_truncated BOOLEAN NOT NULL DEFAULT 0,
		placed_at DATETIME NOT NULL,
		cancelled_at DATETIME,
		completed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT orders_payment_intent_id_key UNIQUE (payment_intent_id),
		CHECK (amount_cents = subtotal_cents + service_fee_cents)
	)`,
	`CREATE TABLE ledger_events (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		payment_intent_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_reconciliations (
		id TEXT PRIMARY KEY,
		payment_intent_id TEXT NOT NULL UNIQUE,
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		amount_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		order_id TEXT,
		payload TEXT,
		next_attempt_at DATETIME NOT NULL,
		resolved_at DATETIME,
		escalated_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
}

// Open returns a gorm connection to a fresh in-memory database. The pool is
// pinned to one connection so concurrent callers serialize like row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.FromConn(Open(t))
}
