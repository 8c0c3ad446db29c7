package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/loginlink"
)

// Account link types accepted by CreateAccountLink.
const (
	LinkTypeOnboarding = "account_onboarding"
)

// CreateExpressAccount opens an Express connected account that can take card
// payments and receive transfers.
func (c *Client) CreateExpressAccount(ctx context.Context, country, email string) (*stripe.Account, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(strings.ToUpper(country)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	return account.New(params)
}

// GetAccount fetches the live capability flags of a connected account.
func (c *Client) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.AccountParams{}
	params.Context = ctx
	return account.GetByID(id, params)
}

// CreateAccountLink returns a hosted onboarding URL for the account.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripe.AccountLink, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(LinkTypeOnboarding),
	}
	params.Context = ctx
	return accountlink.New(params)
}

// CreateLoginLink returns a single-use Express dashboard URL for an onboarded account.
func (c *Client) CreateLoginLink(ctx context.Context, accountID string) (*stripe.LoginLink, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx
	return loginlink.New(params)
}
