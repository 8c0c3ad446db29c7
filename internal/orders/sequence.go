package orders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db"
)

// DefaultCounter is the order_counters row behind order numbers.
const DefaultCounter = "orders"

const nextSequenceSQL = `INSERT INTO order_counters (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = order_counters.value + 1
RETURNING value`

// Sequencer hands out consecutive order numbers from a single counter row.
// The increment takes the row lock, so concurrent transactions serialize on
// it and a rolled back transaction gives its number back.
type Sequencer struct {
	counter string
}

func NewSequencer(counter string) *Sequencer {
	if counter == "" {
		counter = DefaultCounter
	}
	return &Sequencer{counter: counter}
}

// Next increments the counter inside tx under a savepoint. On error the
// savepoint is rolled back and tx remains usable.
func (s *Sequencer) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required for order sequence")
	}
	var value int64
	err := db.WithSavepoint(tx, "order_sequence", func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Raw(nextSequenceSQL, s.counter).Scan(&value).Error
	})
	if err != nil {
		return 0, fmt.Errorf("advance order sequence: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("advance order sequence: got %d", value)
	}
	return value, nil
}

// FormatOrderNumber zero pads to three digits: 7 is "#007", 1000 is "#1000".
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("#%03d", n)
}

// FallbackOrderNumber is used when the counter is unavailable. The "T" marks
// it as a timestamp so staff can tell it apart from sequenced numbers.
func FallbackOrderNumber(t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "#T" + ms
}
