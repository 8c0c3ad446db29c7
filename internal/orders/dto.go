package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// ListFilters describe the inputs supported by the staff dashboard list.
// With no statuses the list shows every order that is not completed.
type ListFilters struct {
	Statuses  []enums.OrderStatus
	OrderType *enums.OrderType
}

// OrderSummary is one row of the staff dashboard.
type OrderSummary struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"orderNumber"`
	Status          enums.OrderStatus `json:"status"`
	OrderType       enums.OrderType   `json:"orderType"`
	Source          enums.OrderSource `json:"source"`
	CustomerName    string            `json:"customerName"`
	ItemCount       int               `json:"itemCount"`
	Total           decimal.Decimal   `json:"total"`
	Currency        string            `json:"currency"`
	PlacedAt        time.Time         `json:"placedAt"`
	PaymentIntentID string            `json:"paymentIntentId"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// OrderDetail is the full staff view of an order.
type OrderDetail struct {
	ID              uuid.UUID          `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	Status          enums.OrderStatus  `json:"status"`
	OrderType       enums.OrderType    `json:"orderType"`
	Source          enums.OrderSource  `json:"source"`
	PaymentIntentID string             `json:"paymentIntentId"`
	Customer        types.CustomerInfo `json:"customerInfo"`
	Items           types.OrderItems   `json:"items"`
	ItemsTruncated  bool               `json:"itemsTruncated,omitempty"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	ServiceFee      decimal.Decimal    `json:"serviceFee"`
	Total           decimal.Decimal    `json:"total"`
	Currency        string             `json:"currency"`
	PlacedAt        time.Time          `json:"placedAt"`
	CancelledAt     *time.Time         `json:"cancelledAt,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func toSummary(order models.Order) OrderSummary {
	return OrderSummary{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		OrderType:       order.OrderType,
		Source:          order.Source,
		CustomerName:    order.CustomerInfo.FullName(),
		ItemCount:       itemCount(order.Items),
		Total:           fees.FromCents(order.AmountCents),
		Currency:        order.Currency,
		PlacedAt:        order.PlacedAt,
		PaymentIntentID: order.PaymentIntentID,
	}
}

// ToDetail maps a stored order to its staff view.
func ToDetail(order *models.Order) *OrderDetail {
	if order == nil {
		return nil
	}
	return &OrderDetail{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		OrderType:       order.OrderType,
		Source:          order.Source,
		PaymentIntentID: order.PaymentIntentID,
		Customer:        order.CustomerInfo,
		Items:           order.Items,
		ItemsTruncated:  order.ItemsTruncated,
		Subtotal:        fees.FromCents(order.SubtotalCents),
		ServiceFee:      fees.FromCents(order.ServiceFeeCents),
		Total:           fees.FromCents(order.AmountCents),
		Currency:        order.Currency,
		PlacedAt:        order.PlacedAt,
		CancelledAt:     order.CancelledAt,
		CompletedAt:     order.CompletedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func itemCount(items types.OrderItems) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
