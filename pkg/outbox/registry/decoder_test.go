package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderStatusChanged, 1, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"to":"ready"}`)
	output, err := reg.Decode(enums.EventOrderStatusChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["to"] != "ready" {
		t.Fatalf("unexpected output %+v", output)
	}
	if _, err := reg.Decode(enums.EventOrderStatusChanged, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}

func TestConsumerDecoders(t *testing.T) {
	reg := NewConsumerDecoders()
	out, err := reg.Decode(enums.EventOrderCreated, 1, json.RawMessage(`{"order_number":"#042","item_count":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, ok := out.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if created.OrderNumber != "#042" || created.ItemCount != 3 {
		t.Fatalf("unexpected payload %+v", created)
	}
}
