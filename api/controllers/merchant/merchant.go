package merchant

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/restaurant-checkout/api/responses"
	"github.com/angelmondragon/restaurant-checkout/api/validators"
	internalmerchant "github.com/angelmondragon/restaurant-checkout/internal/merchant"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

type Service interface {
	Onboard(ctx context.Context, email string) (*internalmerchant.OnboardingResult, error)
	RefreshStatus(ctx context.Context) (*models.MerchantAccount, error)
}

type onboardingRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

type accountStatus struct {
	AccountID        string                      `json:"accountId"`
	Status           enums.MerchantAccountStatus `json:"status"`
	ChargesEnabled   bool                        `json:"chargesEnabled"`
	PayoutsEnabled   bool                        `json:"payoutsEnabled"`
	DetailsSubmitted bool                        `json:"detailsSubmitted"`
}

type onboardingResponse struct {
	accountStatus
	URL       string     `json:"url"`
	LinkType  string     `json:"linkType"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Onboard creates the restaurant's connected account if needed and returns
// the hosted link the owner should open next.
func Onboard(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		var payload onboardingRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Onboard(r.Context(), payload.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, onboardingResponse{
			accountStatus: toStatus(result.Account),
			URL:           result.URL,
			LinkType:      result.LinkType,
			ExpiresAt:     result.ExpiresAt,
		})
	}
}

// Status refreshes the capability flags from the processor.
func Status(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		account, err := svc.RefreshStatus(r.Context())
		if err != nil {
			if errors.Is(err, internalmerchant.ErrAccountNotFound) {
				err = pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "merchant account not onboarded")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatus(account))
	}
}

func toStatus(account *models.MerchantAccount) accountStatus {
	if account == nil {
		return accountStatus{Status: enums.MerchantAccountStatusPending}
	}
	return accountStatus{
		AccountID:        account.AccountID,
		Status:           account.Status,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}
}
