package merchant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
)

type fakeGateway struct {
	account      stripego.Account
	created      int
	linkCalls    int
	loginCalls   int
	getErr       error
	lastCountry  string
	lastRefresh  string
	lastReturnTo string
}

func (f *fakeGateway) CreateExpressAccount(_ context.Context, country, email string) (*stripego.Account, error) {
	f.created++
	f.lastCountry = country
	acct := f.account
	acct.Email = email
	return &acct, nil
}

func (f *fakeGateway) GetAccount(_ context.Context, id string) (*stripego.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	acct := f.account
	acct.ID = id
	return &acct, nil
}

func (f *fakeGateway) CreateAccountLink(_ context.Context, _, refreshURL, returnURL string) (*stripego.AccountLink, error) {
	f.linkCalls++
	f.lastRefresh = refreshURL
	f.lastReturnTo = returnURL
	return &stripego.AccountLink{URL: "https://connect.stripe.test/setup", ExpiresAt: time.Now().Add(5 * time.Minute).Unix()}, nil
}

func (f *fakeGateway) CreateLoginLink(context.Context, string) (*stripego.LoginLink, error) {
	f.loginCalls++
	return &stripego.LoginLink{URL: "https://connect.stripe.test/express"}, nil
}

func newTestService(t *testing.T, gw *fakeGateway) (*Service, *outbox.Repository) {
	t.Helper()
	client := dbtest.Client(t)
	outboxRepo := outbox.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repository:  NewRepository(client.DB()),
		DB:          client,
		Gateway:     gw,
		Outbox:      outbox.NewService(outboxRepo, nil),
		Country:     "AU",
		FrontendURL: "https://eat.example/admin/",
	})
	require.NoError(t, err)
	return svc, outboxRepo
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, enums.MerchantAccountStatusActive, DeriveStatus(true, true, true))
	require.Equal(t, enums.MerchantAccountStatusActive, DeriveStatus(true, true, false))
	require.Equal(t, enums.MerchantAccountStatusSubmitted, DeriveStatus(true, false, true))
	require.Equal(t, enums.MerchantAccountStatusSubmitted, DeriveStatus(false, false, true))
	require.Equal(t, enums.MerchantAccountStatusPending, DeriveStatus(true, false, false))
	require.Equal(t, enums.MerchantAccountStatusPending, DeriveStatus(false, false, false))
}

func TestOnboardCreatesAccountOnce(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{account: stripego.Account{ID: "acct_new"}}
	svc, _ := newTestService(t, gw)

	first, err := svc.Onboard(ctx, "owner@eat.example")
	require.NoError(t, err)
	require.Equal(t, LinkTypeOnboarding, first.LinkType)
	require.Equal(t, "acct_new", first.Account.AccountID)
	require.Equal(t, enums.MerchantAccountStatusPending, first.Account.Status)
	require.NotNil(t, first.ExpiresAt)
	require.Equal(t, "AU", gw.lastCountry)
	require.Equal(t, "https://eat.example/admin/stripe/refresh", gw.lastRefresh)
	require.Equal(t, "https://eat.example/admin/stripe/return", gw.lastReturnTo)

	second, err := svc.Onboard(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, gw.created)
	require.Equal(t, first.Account.ID, second.Account.ID)

	stored, err := svc.Primary(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored.OnboardingLink)
}

func TestOnboardReturnsDashboardWhenActive(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{account: stripego.Account{ID: "acct_live"}}
	svc, outboxRepo := newTestService(t, gw)

	_, err := svc.Onboard(ctx, "")
	require.NoError(t, err)

	gw.account = stripego.Account{ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}
	result, err := svc.Onboard(ctx, "")
	require.NoError(t, err)
	require.Equal(t, LinkTypeDashboard, result.LinkType)
	require.Equal(t, enums.MerchantAccountStatusActive, result.Account.Status)
	require.Equal(t, 1, gw.loginCalls)

	events, err := outboxRepo.ListByAggregate(ctx, enums.AggregateMerchant, result.Account.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventMerchantStatusChanged, events[0].EventType)
}

func TestChargeableAccountRefreshesStaleFlags(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{account: stripego.Account{ID: "acct_1"}}
	svc, _ := newTestService(t, gw)

	_, err := svc.ChargeableAccount(ctx)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Onboard(ctx, "")
	require.NoError(t, err)

	gw.account = stripego.Account{ChargesEnabled: true, DetailsSubmitted: true}
	account, err := svc.ChargeableAccount(ctx)
	require.NoError(t, err)
	require.True(t, account.CanAcceptPayments())
	require.Equal(t, enums.MerchantAccountStatusSubmitted, account.Status)
}

func TestSyncAccountIgnoresForeignAccounts(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{account: stripego.Account{ID: "acct_ours"}}
	svc, _ := newTestService(t, gw)
	_, err := svc.Onboard(ctx, "")
	require.NoError(t, err)

	got, err := svc.SyncAccount(ctx, &stripego.Account{ID: "acct_other", ChargesEnabled: true, PayoutsEnabled: true})
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = svc.SyncAccount(ctx, &stripego.Account{ID: "acct_ours", ChargesEnabled: true, PayoutsEnabled: true})
	require.NoError(t, err)
	require.Equal(t, enums.MerchantAccountStatusActive, got.Status)

	_, err = svc.SyncAccount(ctx, &stripego.Account{})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestRefreshStatusSurfacesGatewayFailure(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{account: stripego.Account{ID: "acct_1"}}
	svc, _ := newTestService(t, gw)
	_, err := svc.Onboard(ctx, "")
	require.NoError(t, err)

	gw.getErr = errors.New("connection reset")
	_, err = svc.RefreshStatus(ctx)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
	require.Equal(t, true, typed.Details().(map[string]any)["retryable"])
}
