package stripe

import (
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ConstructEvent verifies the Stripe-Signature header against the raw body.
// Events from older API versions are accepted; handlers decode only the fields they use.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.SigningSecret(), webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
