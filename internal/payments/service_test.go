package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/restaurant-checkout/internal/merchant"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/stripe"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

type stubGateway struct {
	createReq stripe.PaymentIntentRequest
	createErr error
	intent    *stripego.PaymentIntent
	getErr    error
	getCalls  int
	getAcct   string
}

func (s *stubGateway) CreatePaymentIntent(_ context.Context, req stripe.PaymentIntentRequest) (*stripego.PaymentIntent, error) {
	s.createReq = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &stripego.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}, nil
}

func (s *stubGateway) GetPaymentIntent(_ context.Context, _ string, account string) (*stripego.PaymentIntent, error) {
	s.getCalls++
	s.getAcct = account
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.intent, nil
}

type stubMerchants struct {
	account *models.MerchantAccount
	err     error
}

func (s stubMerchants) Primary(context.Context) (*models.MerchantAccount, error) {
	return s.account, s.err
}

func (s stubMerchants) ChargeableAccount(context.Context) (*models.MerchantAccount, error) {
	return s.account, s.err
}

func activeMerchant() *models.MerchantAccount {
	return &models.MerchantAccount{AccountID: "acct_rest", ChargesEnabled: true, PayoutsEnabled: true}
}

func cart() (decimal.Decimal, types.OrderItems, types.CustomerInfo) {
	items := types.OrderItems{
		{Name: "Margherita", UnitPrice: decimal.RequireFromString("15.00"), Quantity: 2},
		{Name: "Tiramisu", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1},
	}
	customer := types.CustomerInfo{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com", Phone: "0400000000"}
	return decimal.RequireFromString("40.00"), items, customer
}

func newService(t *testing.T, gw *stubGateway, merchants MerchantSource) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Gateway: gw, Merchants: merchants, Codec: DefaultCodec(), Currency: "AUD"})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateSplitPaymentDirectCharge(t *testing.T) {
	gw := &stubGateway{}
	svc := newService(t, gw, stubMerchants{account: activeMerchant()})
	subtotal, items, customer := cart()

	got, err := svc.CreateSplitPayment(context.Background(), CreateSplitPaymentInput{
		Subtotal:       subtotal,
		Items:          items,
		Customer:       customer,
		IdempotencyKey: "cart-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ClientSecret != "pi_123_secret_abc" || got.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.StripeAccountID != "acct_rest" {
		t.Fatalf("client must be told the connected account, got %q", got.StripeAccountID)
	}
	if !got.Totals.ServiceFee.Equal(decimal.RequireFromString("2.00")) || !got.Totals.Total.Equal(decimal.RequireFromString("42.00")) {
		t.Fatalf("unexpected totals %+v", got.Totals)
	}

	req := gw.createReq
	if req.AmountCents != 4200 || req.ApplicationFeeCents != 200 {
		t.Fatalf("unexpected amounts %d/%d", req.AmountCents, req.ApplicationFeeCents)
	}
	if req.ConnectedAccountID != "acct_rest" || req.Currency != "aud" || req.IdempotencyKey != "cart-1" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Metadata[MetaTotal] != "42.00" || req.Metadata[MetaItemsTruncated] != "false" {
		t.Fatalf("unexpected metadata %+v", req.Metadata)
	}
}

func TestCreateSplitPaymentRejectsBeforeIO(t *testing.T) {
	subtotal, items, customer := cart()
	cases := map[string]CreateSplitPaymentInput{
		"zero subtotal":  {Subtotal: decimal.Zero, Items: items, Customer: customer},
		"sub-cent":       {Subtotal: decimal.RequireFromString("40.001"), Items: items, Customer: customer},
		"no items":       {Subtotal: subtotal, Customer: customer},
		"items mismatch": {Subtotal: decimal.RequireFromString("41.00"), Items: items, Customer: customer},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			gw := &stubGateway{}
			svc := newService(t, gw, stubMerchants{account: activeMerchant()})
			_, err := svc.CreateSplitPayment(context.Background(), input)
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if gw.createReq.AmountCents != 0 {
				t.Fatalf("processor must not be called")
			}
		})
	}
}

func TestCreateSplitPaymentRequiresMerchant(t *testing.T) {
	subtotal, items, customer := cart()
	input := CreateSplitPaymentInput{Subtotal: subtotal, Items: items, Customer: customer}

	for name, merchants := range map[string]stubMerchants{
		"not onboarded":    {err: merchant.ErrAccountNotFound},
		"charges disabled": {account: &models.MerchantAccount{AccountID: "acct_rest"}},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, &stubGateway{}, merchants)
			_, err := svc.CreateSplitPayment(context.Background(), input)
			if !errors.Is(err, ErrMerchantNotConfigured) {
				t.Fatalf("expected ErrMerchantNotConfigured, got %v", err)
			}
			if pkgerrors.CodeOf(err) != pkgerrors.CodePrecondition {
				t.Fatalf("expected precondition code, got %s", pkgerrors.CodeOf(err))
			}
		})
	}
}

func TestCreateSplitPaymentClassifiesProcessorErrors(t *testing.T) {
	subtotal, items, customer := cart()
	input := CreateSplitPaymentInput{Subtotal: subtotal, Items: items, Customer: customer}

	declined := &stripego.Error{HTTPStatusCode: http.StatusBadRequest, Type: stripego.ErrorTypeInvalidRequest, Code: stripego.ErrorCodeAccountInvalid}
	svc := newService(t, &stubGateway{createErr: declined}, stubMerchants{account: activeMerchant()})
	_, err := svc.CreateSplitPayment(context.Background(), input)
	if !errors.Is(err, ErrPaymentInitiationFailed) {
		t.Fatalf("expected ErrPaymentInitiationFailed, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodePaymentFailed || typed.Retryable() {
		t.Fatalf("expected non-retryable payment failure, got %s", typed.Code())
	}
	if typed.Details().(map[string]any)["processorCode"] != string(stripego.ErrorCodeAccountInvalid) {
		t.Fatalf("processor code missing: %+v", typed.Details())
	}

	svc = newService(t, &stubGateway{createErr: context.DeadlineExceeded}, stubMerchants{account: activeMerchant()})
	_, err = svc.CreateSplitPayment(context.Background(), input)
	typed = pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeDependency || !typed.Retryable() {
		t.Fatalf("timeout should be retryable dependency error, got %s", typed.Code())
	}
	if !errors.Is(err, ErrPaymentInitiationFailed) {
		t.Fatalf("timeout should still match ErrPaymentInitiationFailed")
	}
}

func TestVerifyPayment(t *testing.T) {
	merchants := stubMerchants{account: activeMerchant()}

	t.Run("succeeded", func(t *testing.T) {
		gw := &stubGateway{intent: &stripego.PaymentIntent{
			ID: "pi_1", Status: stripego.PaymentIntentStatusSucceeded, Amount: 4200, ApplicationFeeAmount: 200, Currency: "aud",
			Metadata: map[string]string{MetaTotal: "42.00"},
		}}
		got, err := newService(t, gw, merchants).VerifyPayment(context.Background(), "pi_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.AmountCents != 4200 || got.ApplicationFeeCents != 200 || got.Metadata[MetaTotal] != "42.00" {
			t.Fatalf("unexpected verified payment %+v", got)
		}
		if gw.getAcct != "acct_rest" {
			t.Fatalf("intent must be read in the connected account context, got %q", gw.getAcct)
		}
	})

	t.Run("not succeeded", func(t *testing.T) {
		for _, status := range []stripego.PaymentIntentStatus{
			stripego.PaymentIntentStatusRequiresAction,
			stripego.PaymentIntentStatusRequiresPaymentMethod,
			stripego.PaymentIntentStatusCanceled,
		} {
			gw := &stubGateway{intent: &stripego.PaymentIntent{ID: "pi_1", Status: status}}
			_, err := newService(t, gw, merchants).VerifyPayment(context.Background(), "pi_1")
			var notSucceeded *NotSucceededError
			if !errors.As(err, &notSucceeded) || notSucceeded.Status != string(status) {
				t.Fatalf("expected NotSucceededError(%s), got %v", status, err)
			}
			if !errors.Is(err, ErrPaymentNotSucceeded) || pkgerrors.CodeOf(err) != pkgerrors.CodePrecondition {
				t.Fatalf("expected failed precondition, got %v", err)
			}
		}
	})

	t.Run("not found", func(t *testing.T) {
		gw := &stubGateway{getErr: &stripego.Error{HTTPStatusCode: http.StatusNotFound, Code: stripego.ErrorCodeResourceMissing}}
		_, err := newService(t, gw, merchants).VerifyPayment(context.Background(), "pi_missing")
		if !errors.Is(err, ErrPaymentNotFound) || pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
		if errors.Is(err, ErrPaymentNotSucceeded) {
			t.Fatalf("not found must stay distinct from not succeeded")
		}
	})

	t.Run("processor unavailable", func(t *testing.T) {
		gw := &stubGateway{getErr: context.DeadlineExceeded}
		_, err := newService(t, gw, merchants).VerifyPayment(context.Background(), "pi_1")
		if !errors.Is(err, ErrPaymentLookupFailed) || errors.Is(err, ErrPaymentNotFound) {
			t.Fatalf("expected lookup failure, got %v", err)
		}
		if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
			t.Fatalf("expected dependency code, got %s", pkgerrors.CodeOf(err))
		}
	})

	t.Run("blank id", func(t *testing.T) {
		gw := &stubGateway{}
		_, err := newService(t, gw, merchants).VerifyPayment(context.Background(), "  ")
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation || gw.getCalls != 0 {
			t.Fatalf("expected validation error without I/O, got %v", err)
		}
	})
}

func TestVerifyIntentChecksAccount(t *testing.T) {
	svc := newService(t, &stubGateway{}, stubMerchants{account: activeMerchant()})
	intent := &stripego.PaymentIntent{ID: "pi_1", Status: stripego.PaymentIntentStatusSucceeded, Amount: 4200}

	if _, err := svc.VerifyIntent(context.Background(), intent, "acct_other"); !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("expected account mismatch, got %v", err)
	}
	got, err := svc.VerifyIntent(context.Background(), intent, "acct_rest")
	if err != nil || got.ID != "pi_1" {
		t.Fatalf("unexpected result %+v %v", got, err)
	}
}
