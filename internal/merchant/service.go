// Package merchant owns the restaurant's connected processor account:
// onboarding, status refresh and the lookup the payment flow depends on.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-checkout/pkg/stripe"
)

// ErrAccountNotFound means onboarding never started for this deployment.
var ErrAccountNotFound = errors.New("merchant account not found")

// Link types returned by Onboard.
const (
	LinkTypeOnboarding = "account_onboarding"
	LinkTypeDashboard  = "express_dashboard"
)

// Gateway is the processor surface used for connected accounts.
type Gateway interface {
	CreateExpressAccount(ctx context.Context, country, email string) (*stripego.Account, error)
	GetAccount(ctx context.Context, id string) (*stripego.Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripego.AccountLink, error)
	CreateLoginLink(ctx context.Context, accountID string) (*stripego.LoginLink, error)
}

// OnboardingResult is what the staff dashboard needs to continue onboarding.
type OnboardingResult struct {
	Account   *models.MerchantAccount
	URL       string
	LinkType  string
	ExpiresAt *time.Time
}

type ServiceParams struct {
	Repository  Repository
	DB          db.TxRunner
	Gateway     Gateway
	Outbox      outbox.Emitter
	Logger      *logger.Logger
	Country     string
	FrontendURL string
}

type Service struct {
	repo        Repository
	db          db.TxRunner
	gateway     Gateway
	outbox      outbox.Emitter
	logg        *logger.Logger
	country     string
	frontendURL string
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("processor gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	country := strings.TrimSpace(params.Country)
	if country == "" {
		country = "AU"
	}
	return &Service{
		repo:        params.Repository,
		db:          params.DB,
		gateway:     params.Gateway,
		outbox:      params.Outbox,
		logg:        logg,
		country:     country,
		frontendURL: strings.TrimRight(params.FrontendURL, "/"),
		now:         time.Now,
	}, nil
}

// Primary loads the stored account without calling the processor.
func (s *Service) Primary(ctx context.Context) (*models.MerchantAccount, error) {
	account, err := s.repo.FindPrimary(ctx)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant account")
	}
	return account, nil
}

// ChargeableAccount returns the account payments are split against. When the
// stored flags say charges are disabled, the processor is asked once more in
// case an account.updated delivery was missed.
func (s *Service) ChargeableAccount(ctx context.Context) (*models.MerchantAccount, error) {
	account, err := s.Primary(ctx)
	if err != nil {
		return nil, err
	}
	if account.CanAcceptPayments() {
		return account, nil
	}
	refreshed, err := s.refresh(ctx, account)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// Onboard creates the connected account on first use and returns a hosted
// link: onboarding while incomplete, the Express dashboard once active.
func (s *Service) Onboard(ctx context.Context, email string) (*OnboardingResult, error) {
	account, err := s.Primary(ctx)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		account, err = s.createAccount(ctx, strings.TrimSpace(email))
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if account, err = s.refresh(ctx, account); err != nil {
			return nil, err
		}
	}

	if account.Status == enums.MerchantAccountStatusActive {
		link, err := s.gateway.CreateLoginLink(ctx, account.AccountID)
		if err != nil {
			return nil, gatewayError(err, "create dashboard link")
		}
		return &OnboardingResult{Account: account, URL: link.URL, LinkType: LinkTypeDashboard}, nil
	}

	link, err := s.gateway.CreateAccountLink(ctx, account.AccountID, s.frontendURL+"/stripe/refresh", s.frontendURL+"/stripe/return")
	if err != nil {
		return nil, gatewayError(err, "create onboarding link")
	}
	expires := time.Unix(link.ExpiresAt, 0).UTC()
	account.OnboardingLink = &link.URL
	account.OnboardingLinkExpiresAt = &expires
	if err := s.repo.Save(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store onboarding link")
	}
	return &OnboardingResult{Account: account, URL: link.URL, LinkType: LinkTypeOnboarding, ExpiresAt: &expires}, nil
}

// RefreshStatus pulls the live capability flags and re-derives the status.
func (s *Service) RefreshStatus(ctx context.Context) (*models.MerchantAccount, error) {
	account, err := s.Primary(ctx)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, account)
}

// SyncAccount applies an account object pushed by the processor. Accounts
// other than ours are ignored and yield (nil, nil).
func (s *Service) SyncAccount(ctx context.Context, remote *stripego.Account) (*models.MerchantAccount, error) {
	if remote == nil || remote.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account payload missing id")
	}
	account, err := s.repo.FindByAccountID(ctx, remote.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant account")
	}
	return s.apply(ctx, account, remote)
}

func (s *Service) refresh(ctx context.Context, account *models.MerchantAccount) (*models.MerchantAccount, error) {
	remote, err := s.gateway.GetAccount(ctx, account.AccountID)
	if err != nil {
		return nil, gatewayError(err, "retrieve merchant account")
	}
	return s.apply(ctx, account, remote)
}

func (s *Service) apply(ctx context.Context, account *models.MerchantAccount, remote *stripego.Account) (*models.MerchantAccount, error) {
	previous := account.Status
	account.ChargesEnabled = remote.ChargesEnabled
	account.PayoutsEnabled = remote.PayoutsEnabled
	account.DetailsSubmitted = remote.DetailsSubmitted
	account.Status = DeriveStatus(remote.ChargesEnabled, remote.PayoutsEnabled, remote.DetailsSubmitted)
	if remote.Email != "" {
		email := remote.Email
		account.Email = &email
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, account); err != nil {
			return err
		}
		if previous == account.Status {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMerchantStatusChanged,
			AggregateType: enums.AggregateMerchant,
			AggregateID:   account.ID,
			Actor:         &outbox.ActorRef{Kind: outbox.ActorSystem},
			Data: payloads.MerchantStatusChangedEvent{
				MerchantID:     account.ID,
				AccountID:      account.AccountID,
				From:           previous,
				To:             account.Status,
				ChargesEnabled: account.ChargesEnabled,
				PayoutsEnabled: account.PayoutsEnabled,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update merchant account")
	}

	if previous != account.Status {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": account.AccountID,
			"from":       previous,
			"to":         account.Status,
		})
		s.logg.Info(logCtx, "merchant account status changed")
	}
	return account, nil
}

func (s *Service) createAccount(ctx context.Context, email string) (*models.MerchantAccount, error) {
	remote, err := s.gateway.CreateExpressAccount(ctx, s.country, email)
	if err != nil {
		return nil, gatewayError(err, "create merchant account")
	}

	account := &models.MerchantAccount{
		ID:               uuid.New(),
		Slot:             models.MerchantSlotPrimary,
		AccountID:        remote.ID,
		ChargesEnabled:   remote.ChargesEnabled,
		PayoutsEnabled:   remote.PayoutsEnabled,
		DetailsSubmitted: remote.DetailsSubmitted,
		Status:           DeriveStatus(remote.ChargesEnabled, remote.PayoutsEnabled, remote.DetailsSubmitted),
	}
	if email != "" {
		account.Email = &email
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err) {
			// A concurrent onboarding call won; the account just created
			// remotely stays unused.
			s.logg.Warn(s.logg.WithField(ctx, "orphan_account_id", remote.ID), "merchant account created concurrently")
			return s.Primary(ctx)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store merchant account")
	}

	s.logg.Info(s.logg.WithField(ctx, "account_id", account.AccountID), "merchant account created")
	return account, nil
}

func gatewayError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).WithDetails(map[string]any{
		"processorCode": stripe.ErrorCode(err),
		"retryable":     stripe.IsRetryable(err),
	})
}
