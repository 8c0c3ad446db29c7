package stripewebhook

import (
	"context"
	"encoding/json"

	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/restaurant-checkout/internal/checkout"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
)

const (
	resultProcessed      = "processed"
	resultIgnored        = "ignored"
	resultPending        = "pending"
	resultReconciliation = "reconciliation"
	resultFailed         = "failed"
)

type intentHandler interface {
	HandleSucceededIntent(ctx context.Context, intent *stripego.PaymentIntent, accountID string) (*checkout.Outcome, error)
}

type accountSyncer interface {
	SyncAccount(ctx context.Context, remote *stripego.Account) (*models.MerchantAccount, error)
}

type ServiceParams struct {
	Checkout  intentHandler
	Merchants accountSyncer
	Logger    *logger.Logger
	Metrics   *metrics.PaymentMetrics
}

type Service struct {
	checkout  intentHandler
	merchants accountSyncer
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Merchants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "merchant service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		checkout:  params.Checkout,
		merchants: params.Merchants,
		logg:      logg,
		metrics:   params.Metrics,
	}, nil
}

// HandleEvent dispatches a verified event. A returned error means the event
// should be redelivered; everything else, including event types we do not
// handle, is acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripego.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})

	result, err := s.dispatch(ctx, event)
	if err != nil {
		result = resultFailed
	}
	s.metrics.WebhookEvent(string(event.Type), result)
	return err
}

func (s *Service) dispatch(ctx context.Context, event *stripego.Event) (string, error) {
	switch event.Type {
	case stripego.EventTypePaymentIntentSucceeded:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.paymentSucceeded(ctx, &intent, event.Account)
	case stripego.EventTypePaymentIntentPaymentFailed:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		s.paymentFailed(ctx, &intent)
		return resultProcessed, nil
	case stripego.EventTypeAccountUpdated:
		var account stripego.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account event")
		}
		synced, err := s.merchants.SyncAccount(ctx, &account)
		if err != nil {
			return "", err
		}
		if synced == nil {
			return resultIgnored, nil
		}
		return resultProcessed, nil
	default:
		return resultIgnored, nil
	}
}

func (s *Service) paymentSucceeded(ctx context.Context, intent *stripego.PaymentIntent, accountID string) (string, error) {
	ctx = s.logg.WithPaymentIntentID(ctx, intent.ID)
	outcome, err := s.checkout.HandleSucceededIntent(ctx, intent, accountID)
	if err != nil {
		// The gap is already recorded and owned by the reconciliation worker.
		if pkgerrors.CodeOf(err) == pkgerrors.CodeReconciliation {
			return resultReconciliation, nil
		}
		return "", err
	}
	if outcome.Pending {
		s.logg.Info(ctx, "payment succeeded without a reconstructable cart, waiting for confirm")
		return resultPending, nil
	}
	if outcome.Created {
		s.logg.Warn(s.logg.WithOrderID(ctx, outcome.Order.ID.String()), "order created from webhook fallback")
	}
	return resultProcessed, nil
}

func (s *Service) paymentFailed(ctx context.Context, intent *stripego.PaymentIntent) {
	fields := map[string]any{"payment_intent_id": intent.ID}
	if intent.LastPaymentError != nil {
		fields["decline_code"] = string(intent.LastPaymentError.DeclineCode)
		fields["failure_code"] = string(intent.LastPaymentError.Code)
		fields["failure_message"] = intent.LastPaymentError.Msg
	}
	s.metrics.PaymentFailed()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "payment failed")
}
