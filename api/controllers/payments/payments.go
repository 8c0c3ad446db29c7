package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-checkout/api/middleware"
	"github.com/angelmondragon/restaurant-checkout/api/responses"
	"github.com/angelmondragon/restaurant-checkout/api/validators"
	"github.com/angelmondragon/restaurant-checkout/internal/checkout"
	internalpayments "github.com/angelmondragon/restaurant-checkout/internal/payments"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

type SplitPaymentCreator interface {
	CreateSplitPayment(ctx context.Context, input internalpayments.CreateSplitPaymentInput) (*internalpayments.SplitPayment, error)
}

type PaymentConfirmer interface {
	Confirm(ctx context.Context, input checkout.ConfirmInput) (*checkout.Outcome, error)
}

type createIntentRequest struct {
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Items        types.OrderItems   `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerInfo types.CustomerInfo `json:"customerInfo"`
}

type createIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	StripeAccountID string `json:"stripeAccountId"`
	Currency        string `json:"currency"`
	Subtotal        string `json:"subtotal"`
	ServiceFee      string `json:"serviceFee"`
	Total           string `json:"total"`
}

type confirmRequest struct {
	PaymentIntentID string          `json:"paymentIntentId" validate:"required,max=255"`
	OrderPayload    *confirmPayload `json:"orderPayload" validate:"required"`
}

type confirmPayload struct {
	Items        types.OrderItems    `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerInfo *types.CustomerInfo `json:"customerInfo" validate:"required"`
}

type confirmResponse struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Created     bool      `json:"created"`
}

// CreateIntent prices the cart and opens a split payment on the restaurant's account.
func CreateIntent(svc SplitPaymentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		split, err := svc.CreateSplitPayment(r.Context(), internalpayments.CreateSplitPaymentInput{
			Subtotal:       payload.Subtotal,
			Items:          payload.Items,
			Customer:       payload.CustomerInfo,
			IdempotencyKey: validators.SanitizeString(r.Header.Get(middleware.IdempotencyHeader), 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		middleware.NotePaymentIntent(r.Context(), split.PaymentIntentID)

		responses.WriteSuccessStatus(w, http.StatusCreated, createIntentResponse{
			ClientSecret:    split.ClientSecret,
			PaymentIntentID: split.PaymentIntentID,
			StripeAccountID: split.StripeAccountID,
			Currency:        split.Currency,
			Subtotal:        split.Totals.Subtotal.StringFixed(2),
			ServiceFee:      split.Totals.ServiceFee.StringFixed(2),
			Total:           split.Totals.Total.StringFixed(2),
		})
	}
}

// Confirm records the order for a succeeded payment. Retrying returns the same order.
func Confirm(svc PaymentConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkout.ConfirmInput{
			PaymentIntentID: strings.TrimSpace(payload.PaymentIntentID),
			Items:           payload.OrderPayload.Items,
			Customer:        *payload.OrderPayload.CustomerInfo,
		}

		middleware.NotePaymentIntent(r.Context(), input.PaymentIntentID)
		outcome, err := svc.Confirm(r.Context(), input)
		if err != nil {
			responses.WriteError(logg.WithPaymentIntentID(r.Context(), input.PaymentIntentID), logg, w, err)
			return
		}
		middleware.NoteOrder(r.Context(), outcome.Order.ID.String())

		responses.WriteSuccess(w, confirmResponse{
			OrderID:     outcome.Order.ID,
			OrderNumber: outcome.Order.OrderNumber,
			Created:     outcome.Created,
		})
	}
}
