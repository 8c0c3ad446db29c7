// Package payments creates split payment intents against the restaurant's
// connected account and verifies them before an order may be written.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/internal/merchant"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/stripe"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// Gateway is the processor surface for payment intents.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req stripe.PaymentIntentRequest) (*stripego.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id, connectedAccountID string) (*stripego.PaymentIntent, error)
}

// MerchantSource resolves the connected account charges are made under.
type MerchantSource interface {
	Primary(ctx context.Context) (*models.MerchantAccount, error)
	ChargeableAccount(ctx context.Context) (*models.MerchantAccount, error)
}

// CreateSplitPaymentInput is the priced cart as sent by the storefront.
type CreateSplitPaymentInput struct {
	Subtotal       decimal.Decimal
	Items          types.OrderItems
	Customer       types.CustomerInfo
	IdempotencyKey string
}

// SplitPayment is returned to the client. StripeAccountID must be used to
// initialize the client SDK since the intent lives on the connected account.
type SplitPayment struct {
	ClientSecret    string
	PaymentIntentID string
	StripeAccountID string
	Currency        string
	Totals          fees.Totals
}

// VerifiedPayment is an intent the processor reports as succeeded.
type VerifiedPayment struct {
	ID                  string
	AccountID           string
	AmountCents         int64
	ApplicationFeeCents int64
	Currency            string
	Metadata            map[string]string
}

type ServiceParams struct {
	Gateway    Gateway
	Merchants  MerchantSource
	Calculator fees.Calculator
	Codec      MetadataCodec
	Currency   string
	Logger     *logger.Logger
	Metrics    *metrics.PaymentMetrics
}

type Service struct {
	gateway    Gateway
	merchants  MerchantSource
	calculator fees.Calculator
	codec      MetadataCodec
	currency   string
	logg       *logger.Logger
	metrics    *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant source required")
	}
	calc := params.Calculator
	if calc == (fees.Calculator{}) {
		calc = fees.Default()
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "aud"
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		gateway:    params.Gateway,
		merchants:  params.Merchants,
		calculator: calc,
		codec:      params.Codec,
		currency:   currency,
		logg:       logg,
		metrics:    params.Metrics,
	}, nil
}

// Codec exposes the metadata codec so fallback paths decode with the same limits.
func (s *Service) Codec() MetadataCodec {
	return s.codec
}

// Currency is the lower-case ISO code every intent is created in.
func (s *Service) Currency() string {
	return s.currency
}

// CreateSplitPayment prices the cart and creates a direct charge on the
// connected account with the service fee as the application fee. Nothing is
// persisted locally.
func (s *Service) CreateSplitPayment(ctx context.Context, input CreateSplitPaymentInput) (*SplitPayment, error) {
	totals, err := s.calculator.Compute(input.Subtotal)
	if err != nil {
		s.metrics.IntentFailed("invalid_amount")
		return nil, err
	}
	if err := ValidateItems(input.Items, totals.Subtotal); err != nil {
		s.metrics.IntentFailed("invalid_items")
		return nil, err
	}

	account, err := s.merchants.ChargeableAccount(ctx)
	if err != nil {
		s.metrics.IntentFailed("merchant_not_configured")
		return nil, s.merchantError(err)
	}
	if !account.CanAcceptPayments() {
		s.metrics.IntentFailed("merchant_not_configured")
		return nil, merchantNotConfigured("charges_disabled")
	}

	meta, err := s.codec.Encode(totals, input.Items, input.Customer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment metadata")
	}

	_, feeCents, totalCents := totals.Cents()
	intent, err := s.gateway.CreatePaymentIntent(ctx, stripe.PaymentIntentRequest{
		AmountCents:         totalCents,
		ApplicationFeeCents: feeCents,
		Currency:            s.currency,
		ConnectedAccountID:  account.AccountID,
		ReceiptEmail:        input.Customer.Email,
		IdempotencyKey:      input.IdempotencyKey,
		Metadata:            meta,
	})
	if err != nil {
		s.metrics.IntentFailed("processor_error")
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id":     account.AccountID,
			"processor_code": stripe.ErrorCode(err),
			"retryable":      stripe.IsRetryable(err),
		})
		s.logg.Warn(logCtx, "payment intent creation failed")
		return nil, processorError(err, ErrPaymentInitiationFailed, "payment could not be initiated")
	}

	s.metrics.IntentCreated()
	logCtx := s.logg.WithPaymentIntentID(ctx, intent.ID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"amount_cents": totalCents,
		"fee_cents":    feeCents,
		"account_id":   account.AccountID,
	})
	s.logg.Info(logCtx, "split payment intent created")

	return &SplitPayment{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		StripeAccountID: account.AccountID,
		Currency:        s.currency,
		Totals:          totals,
	}, nil
}

// VerifyPayment retrieves the intent in the merchant context and requires
// the succeeded status. Not-found and not-yet-succeeded are distinct errors.
func (s *Service) VerifyPayment(ctx context.Context, paymentIntentID string) (*VerifiedPayment, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}
	account, err := s.merchants.Primary(ctx)
	if err != nil {
		return nil, s.merchantError(err)
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID, account.AccountID)
	if err != nil {
		if stripe.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, fmt.Errorf("%w: %w", ErrPaymentNotFound, err), "payment not found").
				WithDetails(map[string]any{"paymentIntentId": paymentIntentID})
		}
		return nil, processorError(err, ErrPaymentLookupFailed, "payment could not be retrieved")
	}
	return s.verify(intent, account.AccountID)
}

// VerifyIntent checks an intent object already in hand, such as the one in a
// signed webhook event. accountID is the event's connected account.
func (s *Service) VerifyIntent(ctx context.Context, intent *stripego.PaymentIntent, accountID string) (*VerifiedPayment, error) {
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent missing")
	}
	account, err := s.merchants.Primary(ctx)
	if err != nil {
		return nil, s.merchantError(err)
	}
	if accountID != account.AccountID {
		return nil, pkgerrors.Wrap(pkgerrors.CodePrecondition, ErrAccountMismatch, "payment belongs to a different account").
			WithDetails(map[string]any{"accountId": accountID})
	}
	return s.verify(intent, account.AccountID)
}

func (s *Service) verify(intent *stripego.PaymentIntent, accountID string) (*VerifiedPayment, error) {
	if intent.Status != stripego.PaymentIntentStatusSucceeded {
		return nil, notSucceeded(string(intent.Status))
	}
	return &VerifiedPayment{
		ID:                  intent.ID,
		AccountID:           accountID,
		AmountCents:         intent.Amount,
		ApplicationFeeCents: intent.ApplicationFeeAmount,
		Currency:            string(intent.Currency),
		Metadata:            intent.Metadata,
	}, nil
}

func (s *Service) merchantError(err error) error {
	if errors.Is(err, merchant.ErrAccountNotFound) {
		return merchantNotConfigured("not_onboarded")
	}
	return err
}

// ValidateItems requires a non-empty cart whose lines add up to subtotal.
func ValidateItems(items types.OrderItems, subtotal decimal.Decimal) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid item").
				WithDetails(map[string]any{"index": i})
		}
		if item.UnitPrice.IsNegative() || !item.UnitPrice.Equal(item.UnitPrice.Round(2)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid item price").
				WithDetails(map[string]any{"index": i, "price": item.UnitPrice.String()})
		}
	}
	if sum := items.Sum(); !sum.Equal(subtotal) {
		return pkgerrors.New(pkgerrors.CodeValidation, "items do not add up to subtotal").
			WithDetails(map[string]any{"itemsTotal": sum.StringFixed(2), "subtotal": subtotal.StringFixed(2)})
	}
	return nil
}
