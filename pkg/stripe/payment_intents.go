package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// PaymentIntentRequest describes a direct charge on a connected account with
// the platform fee collected as an application fee.
type PaymentIntentRequest struct {
	AmountCents         int64
	ApplicationFeeCents int64
	Currency            string
	ConnectedAccountID  string
	ReceiptEmail        string
	Description         string
	IdempotencyKey      string
	Metadata            map[string]string
}

// CreatePaymentIntent creates a card-only intent under the connected account.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*stripe.PaymentIntent, error) {
	if req.ConnectedAccountID == "" {
		return nil, errors.New("connected account id is required")
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes:   stripe.StringSlice([]string{"card"}),
		ApplicationFeeAmount: stripe.Int64(req.ApplicationFeeCents),
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetStripeAccount(req.ConnectedAccountID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	return paymentintent.New(params)
}

// GetPaymentIntent retrieves an intent in the connected account's context.
func (c *Client) GetPaymentIntent(ctx context.Context, id, connectedAccountID string) (*stripe.PaymentIntent, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	if connectedAccountID != "" {
		params.SetStripeAccount(connectedAccountID)
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}
