package outbox

import (
	"encoding/json"
	"time"
)

// Actor kinds recorded on outbox envelopes.
const (
	ActorSystem   = "system"
	ActorStaff    = "staff"
	ActorCustomer = "customer"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
