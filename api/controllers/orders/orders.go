package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/api/middleware"
	"github.com/angelmondragon/restaurant-checkout/api/responses"
	"github.com/angelmondragon/restaurant-checkout/api/validators"
	internalorders "github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/pagination"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing ready completed cancelled"`
}

// List returns the dashboard page. Without a status filter completed orders are hidden.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessPage(w, list.Orders, list.NextCursor, limit)
	}
}

// Detail returns one order with its items and customer block.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		middleware.NoteOrder(r.Context(), orderID.String())
		detail, err := svc.Get(logg.WithOrderID(r.Context(), orderID.String()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// UpdateStatus moves the order through the kitchen workflow or cancels it.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		staffID := middleware.StaffIDFromContext(r.Context())
		if staffID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff context missing"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		middleware.NoteOrder(r.Context(), orderID.String())
		ctx := logg.WithOrderID(r.Context(), orderID.String())
		detail, err := svc.UpdateStatus(ctx, internalorders.UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
			StaffID: staffID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func buildFilters(r *http.Request) (internalorders.ListFilters, error) {
	var filters internalorders.ListFilters
	for _, raw := range validators.ParseQueryList(r, "status") {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
				WithDetails(map[string]any{"status": raw})
		}
		filters.Statuses = append(filters.Statuses, status)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("orderType")); raw != "" {
		orderType, err := enums.ParseOrderType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type filter").
				WithDetails(map[string]any{"orderType": raw})
		}
		filters.OrderType = &orderType
	}
	return filters, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
