package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/api/middleware"
	internalorders "github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/pagination"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

type stubOrdersService struct {
	listFilters internalorders.ListFilters
	listParams  pagination.Params
	list        *internalorders.OrderList
	detail      *internalorders.OrderDetail
	update      internalorders.UpdateStatusInput
	err         error
}

func (s *stubOrdersService) List(_ context.Context, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	s.listFilters = filters
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrdersService) Get(_ context.Context, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func (s *stubOrdersService) UpdateStatus(_ context.Context, input internalorders.UpdateStatusInput) (*internalorders.OrderDetail, error) {
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDetail{ID: input.OrderID, Status: input.Status}, nil
}

func withOrderParam(req *http.Request, orderID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListParsesFilters(t *testing.T) {
	svc := &stubOrdersService{list: &internalorders.OrderList{
		Orders:     []internalorders.OrderSummary{{OrderNumber: "#001", Status: enums.OrderStatusPending}},
		NextCursor: "cur",
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/staff/v1/orders?status=pending,ready&orderType=delivery&limit=10&cursor=abc", nil)
	rec := httptest.NewRecorder()

	List(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.listFilters.Statuses) != 2 || svc.listFilters.Statuses[1] != enums.OrderStatusReady {
		t.Fatalf("unexpected statuses %v", svc.listFilters.Statuses)
	}
	if svc.listFilters.OrderType == nil || *svc.listFilters.OrderType != enums.OrderTypeDelivery {
		t.Fatalf("unexpected order type %v", svc.listFilters.OrderType)
	}
	if svc.listParams.Limit != 10 || svc.listParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.listParams)
	}

	var body types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Page == nil || body.Page.NextCursor != "cur" {
		t.Fatalf("expected next cursor in page meta, got %+v", body.Page)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{list: &internalorders.OrderList{}}
	req := httptest.NewRequest(http.MethodGet, "/api/staff/v1/orders?status=eaten", nil)
	rec := httptest.NewRecorder()

	List(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailRejectsInvalidID(t *testing.T) {
	req := withOrderParam(httptest.NewRequest(http.MethodGet, "/api/staff/v1/orders/nope", nil), "nope")
	rec := httptest.NewRecorder()

	Detail(&stubOrdersService{}, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	id := uuid.NewString()
	req := withOrderParam(httptest.NewRequest(http.MethodGet, "/api/staff/v1/orders/"+id, nil), id)
	rec := httptest.NewRecorder()

	Detail(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateStatusPassesStaff(t *testing.T) {
	svc := &stubOrdersService{}
	id := uuid.New()
	staffID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/staff/v1/orders/"+id.String()+"/status", strings.NewReader(`{"status":"preparing"}`))
	req = withOrderParam(req, id.String())
	req = req.WithContext(middleware.WithStaff(req.Context(), staffID, enums.StaffRoleKitchen))
	rec := httptest.NewRecorder()

	UpdateStatus(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.update.OrderID != id || svc.update.Status != enums.OrderStatusPreparing || svc.update.StaffID != staffID {
		t.Fatalf("unexpected input %+v", svc.update)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{}
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"served"}`))
	req = withOrderParam(req, id)
	req = req.WithContext(middleware.WithStaff(req.Context(), uuid.NewString(), enums.StaffRoleKitchen))
	rec := httptest.NewRecorder()

	UpdateStatus(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateStatusMapsStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed")}
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"pending"}`))
	req = withOrderParam(req, id)
	req = req.WithContext(middleware.WithStaff(req.Context(), uuid.NewString(), enums.StaffRoleManager))
	rec := httptest.NewRecorder()

	UpdateStatus(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
